package crud

// ControllerError wraps original error that occurred in Err with name of the
// operation/step that failed, which is in Op field. It is returned when
// routes cannot be registered for a table or an association.
type ControllerError struct {
	Op    string
	Table string
	Err   error
}

func (e *ControllerError) Error() string {
	if e.Table == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Table + ": " + e.Err.Error()
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}

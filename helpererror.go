package crud

// HelperError wraps original error with operation/step where the error occured
// and optionally with a tag when parsing "crud" failed
type HelperError struct {
	Op  string
	Tag string
	Err error
}

func (e HelperError) Error() string {
	if e.Tag != "" {
		return e.Op + " (" + e.Tag + "): " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e HelperError) Unwrap() error {
	return e.Err
}

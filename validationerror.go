package crud

import "strings"

// ValidationError wraps error occuring during request body validation. Fields
// lists the record fields that failed, when they are known.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + strings.Join(e.Fields, ", ") + ")"
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

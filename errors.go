package crud

import (
	"net/http"

	"github.com/pkg/errors"
)

// Error kinds surfaced by the route handlers. Use errors.Is to test for them.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrConnection = errors.New("database connection failed")
	ErrExecution  = errors.New("statement execution failed")
)

// GatewayError is returned by the Gateway for every database-layer failure.
// Kind is either ErrConnection or ErrExecution.
type GatewayError struct {
	Op   string
	Kind error
	Err  error
}

func (e *GatewayError) Error() string {
	return e.Kind.Error() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *GatewayError) Is(target error) bool {
	return target == e.Kind
}

// StatusFor maps an error returned by the core to an HTTP status code
func StatusFor(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

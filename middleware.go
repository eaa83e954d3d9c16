package crud

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the id of a request in both directions
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wrote {
		return
	}
	r.status = code
	r.wrote = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// Middleware wraps next with request id, access log, metrics and panic
// recovery. metrics may be nil.
func Middleware(next http.Handler, logger *slog.Logger, metrics *Metrics) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(r.Context(), "panic in handler", "request_id", id, "panic", p)
				// too late for an error response once the handler has written
				if !rec.wrote {
					writeJSON(rec, http.StatusInternalServerError, NewHTTPResponse(false, http.StatusText(http.StatusInternalServerError)))
				}
			}
			d := time.Since(start)
			metrics.observeRequest(r.Method, strconv.Itoa(rec.status), d)
			logger.InfoContext(r.Context(), "request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", d,
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

package crud

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// HTTPResponse is the body of every acknowledgement and error returned by the
// handlers. Listing endpoints return the rows themselves.
type HTTPResponse struct {
	OK      bool     `json:"ok"`
	Message string   `json:"message,omitempty"`
	ErrText string   `json:"err_text,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func NewHTTPResponse(ok bool, errText string) HTTPResponse {
	return HTTPResponse{
		OK:      ok,
		ErrText: errText,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAck(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, HTTPResponse{OK: true, Message: msg})
}

// writeError writes err with the status StatusFor picks for it. Details of
// database failures are not sent to the client.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	resp := NewHTTPResponse(false, err.Error())
	var ve *ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	if status == http.StatusInternalServerError {
		resp.ErrText = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

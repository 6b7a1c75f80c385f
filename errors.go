package prism

import (
	"net/http"

	"github.com/ohler55/ojg/oj"

	"github.com/prism-cache/prism/core"
)

// ErrorPayload is the wire form of a projection failure:
//
//	{"error": {"code": "...", "message": "...", "path": "...", "traceId": "..."}}
//
// Path is empty for syntax errors, which carry a character offset in
// the message instead. TraceId is present only when trace IDs are
// enabled.
type ErrorPayload struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path"`
	TraceID string `json:"traceId,omitempty"`
}

// NewErrorPayload builds the payload for a projection error.
func NewErrorPayload(err core.ProjectionError, traceID string) ErrorPayload {
	return ErrorPayload{
		Error: ErrorBody{
			Code:    err.Code(),
			Message: err.Error(),
			Path:    err.Path(),
			TraceID: traceID,
		},
	}
}

// errorStatus maps the projection taxonomy onto HTTP statuses. Cycles
// indicate a malformed document rather than a bad request.
func errorStatus(err core.ProjectionError) int {
	if err.Code() == core.CodeCycleDetected {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func writeProjectionError(w http.ResponseWriter, err core.ProjectionError, traceID string) {
	body, marshalErr := oj.Marshal(NewErrorPayload(err, traceID))
	if marshalErr != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(errorStatus(err))
	w.Write(body)
}

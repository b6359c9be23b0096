// Package response renders JSON bodies and the API error envelope shared by
// handlers and middleware.
package response

import (
	"encoding/json"
	stdliberrors "errors"
	"net/http"
	"time"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// Error types reported in ErrorResponse.Type.
const (
	TypeValidation = "validation_error"
	TypeAuth       = "auth_error"
	TypeNotFound   = "not_found"
	TypeConflict   = "conflict"
	TypeRateLimit  = "rate_limit"
	TypeSystem     = "system_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Type          string `json:"type"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error maps err to its HTTP status and writes the error envelope. Server
// errors are masked; their detail never leaves the process.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == errors.ErrCodeUnknown || code == errors.ErrCodeOK {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	body := ErrorResponse{
		Type:          typeForStatus(status),
		Code:          string(code),
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	var ae *errors.AppError
	if status >= http.StatusInternalServerError {
		body.Message = errors.DefaultMessageForCode(code)
	} else if stdliberrors.As(err, &ae) {
		body.Message = ae.Message
		body.Details = ae.Detail
	} else {
		body.Message = err.Error()
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="biodockviz"`)
	}
	JSON(w, status, body)
}

func typeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return TypeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return TypeAuth
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusConflict:
		return TypeConflict
	case http.StatusTooManyRequests:
		return TypeRateLimit
	}
	return TypeSystem
}

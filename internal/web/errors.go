package web

// errors.go renders request-level errors as JSON.
//
// The technical error is logged with the request ID. The client receives
// the message, action and code from core.MapError. Import results are not
// errors and never pass through here, even when every row failed.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/JonMunkholm/donfundy/internal/logging"
)

var (
	errRateLimited     = errors.New("rate limit exceeded")
	errNoFile          = errors.New("no file provided")
	errInvalidImportID = errors.New("invalid import id")
)

// ErrorResponse is the body of every non-result error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with statusCode.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

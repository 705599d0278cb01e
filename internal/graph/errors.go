package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx Graph response. Code and Message carry the service
// error body when Graph supplies one.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("graph: HTTP %d", e.StatusCode)
}

// IsUnauthorized reports whether the API rejected the bearer token.
func (e *StatusError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// newStatusError builds a StatusError from a Graph error body of the shape
// {"error": {"code": ..., "message": ...}}.
func newStatusError(status int, body []byte) *StatusError {
	statusErr := &StatusError{StatusCode: status}

	var errBody struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil {
		statusErr.Code = errBody.Error.Code
		statusErr.Message = errBody.Error.Message
	}
	return statusErr
}

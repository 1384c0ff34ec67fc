package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx answer from the document service.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// decodeError builds an Error from a response body. The service answers
// either {"detail": "..."} or a map of field errors.
func decodeError(status int, body []byte) *Error {
	apiErr := &Error{
		Status:  status,
		Code:    errorCode(status),
		Message: http.StatusText(status),
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	if detail, ok := payload["detail"].(string); ok && detail != "" {
		apiErr.Message = detail
		if code, ok := payload["code"].(string); ok && code != "" {
			apiErr.Code = code
		}
		return apiErr
	}
	for _, key := range []string{"error", "message"} {
		if msg, ok := payload[key].(string); ok && msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}
	if len(payload) > 0 {
		apiErr.Code = "VALIDATION_ERROR"
		apiErr.Details = payload
	}
	return apiErr
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	default:
		if status >= 500 {
			return "SERVER_ERROR"
		}
		return "REQUEST_FAILED"
	}
}

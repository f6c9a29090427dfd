package services

import (
	"errors"
	"net/http"
)

// APIError carries the HTTP status a handler should answer with. Message is
// what the client sees; Err keeps the underlying cause for logging.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

func badRequest(msg string, err error) error {
	return &APIError{Status: http.StatusBadRequest, Message: msg, Err: err}
}

func internalError(msg string, err error) error {
	return &APIError{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// StatusOf maps an error to a response status and client-facing message.
func StatusOf(err error) (int, string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr.Message
	}
	switch {
	case errors.Is(err, ErrCourseNotFound), errors.Is(err, ErrCommentNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

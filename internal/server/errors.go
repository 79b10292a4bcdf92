package server

import (
	"errors"
	"net/http"

	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/matching"
)

// RequestError is a transport level failure with a fixed status, such as a
// malformed body or a missing form field.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func badRequest(message string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: message}
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		reqErr     *RequestError
		tooLarge   *http.MaxBytesError
		extraction *document.ExtractionError
		validation *matching.ValidationError
	)

	switch {
	case errors.As(err, &reqErr):
		return reqErr.Status
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &extraction), errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

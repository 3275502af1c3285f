package signaling

import (
	"errors"
	"fmt"
)

// Package errors. Every error returned by Client matches exactly one of them
// under errors.Is.
var (
	// ErrUnavailable is returned when the camera server cannot be reached.
	ErrUnavailable = errors.New("signaling: server unavailable")

	// ErrRejected is returned when the server answers with a non-2xx status.
	ErrRejected = errors.New("signaling: request rejected")

	// ErrMalformed is returned when a response body cannot be interpreted.
	ErrMalformed = errors.New("signaling: malformed response")

	// ErrEmptyCamera is returned for requests that name no camera.
	ErrEmptyCamera = errors.New("signaling: empty camera id")
)

// StatusError carries the status of a rejected request.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Body is a short excerpt of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("signaling: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("signaling: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is makes a StatusError match ErrRejected.
func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}

package backend

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned when the backend rejects the credentials or session.
var ErrAuthentication = errors.New("backend authentication failed")

// ErrPollTimeout is returned when a search job does not finish within the poll timeout.
var ErrPollTimeout = errors.New("timed out waiting for search results")

// FatalQueryError is returned when the backend rejects a search with a FATAL message.
type FatalQueryError struct {
	Query   string
	Message string
}

func (e *FatalQueryError) Error() string {
	return fmt.Sprintf("fatal response for search %q: %s", e.Query, e.Message)
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

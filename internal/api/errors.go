package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for remote API calls.
var (
	// ErrTransport indicates the request did not complete: connection
	// failure, timeout, or cancellation. The outcome at the server is unknown.
	ErrTransport = errors.New("claim api unreachable")
	// ErrRejected indicates the server answered with a non-2xx status.
	ErrRejected = errors.New("claim api rejected request")
	// ErrNotFound indicates the server answered 404.
	ErrNotFound = errors.New("claim not found")
	// ErrDecode indicates a 2xx response body could not be decoded.
	ErrDecode = errors.New("invalid claim api response")
)

// StatusError is a non-2xx answer from the server. Detail carries the
// server-supplied reason verbatim.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// Is matches ErrRejected for every status and ErrNotFound for 404.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Reason returns the server detail of a StatusError in err's chain.
func Reason(err error) (string, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail, true
	}
	return "", false
}

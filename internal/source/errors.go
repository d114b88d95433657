package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by source lookups.
var (
	// ErrNetwork indicates a transport failure (DNS, timeout, reset).
	ErrNetwork = errors.New("network error")

	// ErrParse indicates a response body that could not be decoded.
	ErrParse = errors.New("invalid response")

	// ErrUndeclaredField indicates an adapter returned a field outside its
	// declared field set. This is a programming error in the adapter.
	ErrUndeclaredField = errors.New("adapter populated an undeclared field")
)

// StatusError is returned for non-200 responses the source does not
// tolerate.
type StatusError struct {
	Source string
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s (%s)", e.Source, e.Status, http.StatusText(e.Status), e.URL)
}

// IsRateLimited returns true if the source rejected the request for
// exceeding its rate limit.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusTooManyRequests
}

// IsNotFound returns true if the source answered 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

package main

import "fmt"

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure, interrupted)
	ExitConfigError = 2 // Configuration error (bad config file, unknown source or field name)
	ExitDataError   = 3 // Data error (malformed BibTeX input)
)

// exitError carries the exit code of a failed run through cobra and fang.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

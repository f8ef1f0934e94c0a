package main

import (
	"errors"

	"github.com/JonMunkholm/donfundy/internal/core"
)

// Exit codes. An import where every row failed exits with exitFailed, the
// same as any other error.
const (
	exitOK      = 0
	exitFailed  = 1
	exitPartial = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailed
}

// outcomeError turns a finished import into a silent exit status.
func outcomeError(o core.Outcome) error {
	switch o {
	case core.OutcomeRejected:
		return withCode(exitFailed, nil)
	case core.OutcomePartial:
		return withCode(exitPartial, nil)
	default:
		return nil
	}
}

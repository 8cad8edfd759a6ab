package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAutomationUnavailable means the browser automation capability is missing
	// from this runtime. It is returned before any session is created.
	ErrAutomationUnavailable = errors.New("automation unavailable")

	// ErrSessionNotFound is returned for ids unknown to the session registry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when creating a session whose id already exists.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrUnsupportedProvider is recorded as a failed session, never returned to a starter.
	ErrUnsupportedProvider = errors.New("provider not supported")
)

// AutomationExecutionError wraps any failure raised while a bot was running.
type AutomationExecutionError struct {
	Provider string
	Err      error
}

func (e *AutomationExecutionError) Error() string {
	return fmt.Sprintf("%s automation failed: %v", e.Provider, e.Err)
}

func (e *AutomationExecutionError) Unwrap() error { return e.Err }

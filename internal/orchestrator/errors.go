package orchestrator

import "errors"

var (
	// ErrAlertNotFound is returned when resolving an alert that is not
	// in the active set.
	ErrAlertNotFound = errors.New("alert not found")
)

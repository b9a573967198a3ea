package heal

import "errors"

var (
	// ErrRuleNotFound is returned when a rule ID is unknown
	ErrRuleNotFound = errors.New("rule not found")

	// ErrDuplicateRule is returned when a rule ID is already registered
	ErrDuplicateRule = errors.New("duplicate rule")

	// ErrInvalidRule is returned when a rule fails validation
	ErrInvalidRule = errors.New("invalid rule")

	// ErrNoHandler is returned when no handler is registered for an action kind
	ErrNoHandler = errors.New("no handler registered for action kind")

	// ErrDuplicateHandler is returned when an action kind is registered twice
	ErrDuplicateHandler = errors.New("duplicate handler for action kind")
)

package model

import "time"

// ActionOutcome is the result reported by an action handler. Details
// carry handler-specific output (container IDs, script stdout, webhook
// status codes).
type ActionOutcome struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ActionExecutionRecord is the immutable record of one remediation
// attempt. Attempts counts how many tries the dispatcher made before
// settling on this outcome.
type ActionExecutionRecord struct {
	ID        string        `json:"id"`
	RuleID    string        `json:"rule_id"`
	RuleName  string        `json:"rule_name"`
	AlertID   string        `json:"alert_id"`
	Action    ActionKind    `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	Attempts  int           `json:"attempts"`
	Outcome   ActionOutcome `json:"outcome"`
}

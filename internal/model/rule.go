package model

import (
	"fmt"
	"time"
)

// ClauseKind enumerates the condition clause types a self-healing rule
// may carry.
type ClauseKind string

const (
	ClauseSeverityEquals ClauseKind = "severity_equals"
	ClauseMetricGT       ClauseKind = "metric_gt"
	ClauseMetricLT       ClauseKind = "metric_lt"
)

// ConditionClause is one structured predicate over an alert. Metric
// clauses name the metric they test; severity clauses name the severity
// the alert must carry.
type ConditionClause struct {
	Kind      ClauseKind `json:"kind" yaml:"kind"`
	Metric    string     `json:"metric,omitempty" yaml:"metric,omitempty"`
	Threshold float64    `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Severity  Severity   `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Matches evaluates the clause against an alert. A metric clause whose
// metric is absent from the alert evaluates to false.
func (c ConditionClause) Matches(alert *AlertRecord) bool {
	switch c.Kind {
	case ClauseSeverityEquals:
		return alert.Severity == c.Severity
	case ClauseMetricGT:
		v, ok := alert.MetricValue(c.Metric)
		return ok && v > c.Threshold
	case ClauseMetricLT:
		v, ok := alert.MetricValue(c.Metric)
		return ok && v < c.Threshold
	}
	return false
}

// Validate checks the clause for structural errors.
func (c ConditionClause) Validate() error {
	switch c.Kind {
	case ClauseSeverityEquals:
		if _, err := ParseSeverity(string(c.Severity)); err != nil {
			return fmt.Errorf("severity_equals clause: %w", err)
		}
	case ClauseMetricGT, ClauseMetricLT:
		if c.Metric == "" {
			return fmt.Errorf("%s clause: metric name is required", c.Kind)
		}
	default:
		return fmt.Errorf("unknown clause kind: %q", c.Kind)
	}
	return nil
}

// ActionKind enumerates the remediation actions the engine knows how to
// dispatch.
type ActionKind string

const (
	ActionServiceRestart ActionKind = "service_restart"
	ActionCacheClear     ActionKind = "cache_clear"
	ActionScale          ActionKind = "scale"
	ActionNotifyTeam     ActionKind = "notify_team"
	ActionRunScript      ActionKind = "run_script"
)

// Valid reports whether the action kind is one the engine dispatches.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionServiceRestart, ActionCacheClear, ActionScale,
		ActionNotifyTeam, ActionRunScript:
		return true
	}
	return false
}

// ActionSpec describes the remediation a rule triggers. Params carry
// kind-specific settings (service name, script path, webhook target).
type ActionSpec struct {
	Kind   ActionKind        `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// SelfHealingRule binds a condition to a remediation action. Rules are
// identified by ID; Cooldown is the minimum interval between two
// executions of the same rule, and MaxRetries bounds how often a
// failed action is retried within one execution.
type SelfHealingRule struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Clauses    []ConditionClause `json:"clauses" yaml:"clauses"`
	Action     ActionSpec        `json:"action" yaml:"action"`
	Cooldown   time.Duration     `json:"cooldown" yaml:"cooldown"`
	MaxRetries int               `json:"max_retries" yaml:"max_retries"`
	Enabled    bool              `json:"enabled" yaml:"enabled"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at,omitempty"`
}

// Matches reports whether every clause of the rule holds for the alert.
// A rule with no clauses matches nothing.
func (r *SelfHealingRule) Matches(alert *AlertRecord) bool {
	if len(r.Clauses) == 0 {
		return false
	}
	for _, c := range r.Clauses {
		if !c.Matches(alert) {
			return false
		}
	}
	return true
}

// Validate checks the rule for structural errors.
func (r *SelfHealingRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Clauses) == 0 {
		return fmt.Errorf("rule requires at least one condition clause")
	}
	for i, c := range r.Clauses {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("clause %d: %w", i, err)
		}
	}
	if !r.Action.Kind.Valid() {
		return fmt.Errorf("unknown action kind: %q", r.Action.Kind)
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

package heal

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/metrics"
	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Engine holds the self-healing rules and their cooldown state. Rules
// are evaluated in declaration order and are immutable once added
// except for the enabled flag.
//
// Selecting a rule to fire claims its cooldown immediately, under the
// engine lock, so two alerts evaluated concurrently can never both
// observe the same rule as ready. A claimed cooldown stays claimed even
// if the action later fails or is cancelled.
type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	rules     []*model.SelfHealingRule
	index     map[string]*model.SelfHealingRule
	cooldowns map[string]time.Time

	nowFn func() time.Time
}

// NewEngine creates an empty rule engine.
func NewEngine(m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		logger:    logger.Named("rules"),
		metrics:   m,
		index:     make(map[string]*model.SelfHealingRule),
		cooldowns: make(map[string]time.Time),
		nowFn:     time.Now,
	}
}

// AddRule validates and registers a rule. Rule IDs must be unique;
// invalid rules are rejected here, never at evaluation time.
func (e *Engine) AddRule(rule model.SelfHealingRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRule, rule.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.index[rule.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.nowFn()
	}
	stored := rule
	e.rules = append(e.rules, &stored)
	e.index[rule.ID] = &stored
	e.metrics.SetRulesEnabled(e.enabledCountLocked())

	e.logger.Info("rule registered",
		zap.String("rule_id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("action", string(rule.Action.Kind)),
		zap.Duration("cooldown", rule.Cooldown),
		zap.Bool("enabled", rule.Enabled))
	return nil
}

// AddRules registers rules in order, stopping at the first error.
func (e *Engine) AddRules(rules ...model.SelfHealingRule) error {
	for _, rule := range rules {
		if err := e.AddRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate checks the alert against every enabled rule in declaration
// order and returns the rules selected to fire. Each selected rule's
// cooldown is claimed before this method returns.
func (e *Engine) Evaluate(alert *model.AlertRecord) []model.SelfHealingRule {
	now := e.nowFn()

	e.mu.Lock()
	defer e.mu.Unlock()

	var selected []model.SelfHealingRule
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if last, ok := e.cooldowns[rule.ID]; ok && now.Sub(last) < rule.Cooldown {
			e.logger.Debug("rule in cooldown",
				zap.String("rule_id", rule.ID),
				zap.Duration("remaining", rule.Cooldown-now.Sub(last)))
			continue
		}
		if !rule.Matches(alert) {
			continue
		}
		e.cooldowns[rule.ID] = now
		selected = append(selected, *rule)
		e.logger.Info("rule selected",
			zap.String("rule_id", rule.ID),
			zap.String("alert_id", alert.ID),
			zap.String("action", string(rule.Action.Kind)))
	}
	return selected
}

// RecordFired sets a rule's cooldown timestamp explicitly.
func (e *Engine) RecordFired(id string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.index[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	e.cooldowns[id] = at
	return nil
}

// LastFired reports when a rule last claimed its cooldown.
func (e *Engine) LastFired(id string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	at, ok := e.cooldowns[id]
	return at, ok
}

// SetEnabled flips a rule's enabled flag.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.Enabled = enabled
	e.metrics.SetRulesEnabled(e.enabledCountLocked())
	e.logger.Info("rule toggled",
		zap.String("rule_id", id),
		zap.Bool("enabled", enabled))
	return nil
}

// Rule returns a copy of the rule with the given ID.
func (e *Engine) Rule(id string) (model.SelfHealingRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.index[id]
	if !ok {
		return model.SelfHealingRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return *rule, nil
}

// Rules returns copies of all rules in declaration order.
func (e *Engine) Rules() []model.SelfHealingRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.SelfHealingRule, len(e.rules))
	for i, rule := range e.rules {
		out[i] = *rule
	}
	return out
}

// EnabledCount returns the number of enabled rules.
func (e *Engine) EnabledCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabledCountLocked()
}

func (e *Engine) enabledCountLocked() int {
	n := 0
	for _, rule := range e.rules {
		if rule.Enabled {
			n++
		}
	}
	return n
}

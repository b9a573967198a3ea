package heal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/metrics"
	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// defaultRetryBackoff is the delay before the first retry; it doubles
// on every further attempt.
const defaultRetryBackoff = 1 * time.Second

// Handler implements one remediation action kind against an external
// collaborator. Handlers report failures through the outcome or an
// error; the dispatcher converts both into failure records.
type Handler interface {
	Kind() model.ActionKind
	Execute(ctx context.Context, action model.ActionSpec, alert *model.AlertRecord) (*model.ActionOutcome, error)
}

// Dispatcher routes selected rules to their action handlers. Every
// execution, successful or not, produces exactly one history record;
// a panicking handler is recovered into a failure, never propagated.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	history *History

	mu       sync.RWMutex
	handlers map[model.ActionKind]Handler

	retryBackoff time.Duration
}

// NewDispatcher creates a dispatcher writing to the given history.
func NewDispatcher(history *History, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:       logger.Named("dispatcher"),
		metrics:      m,
		history:      history,
		handlers:     make(map[model.ActionKind]Handler),
		retryBackoff: defaultRetryBackoff,
	}
}

// RegisterHandler wires a handler to its action kind.
func (d *Dispatcher) RegisterHandler(h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind := h.Kind()
	if _, exists := d.handlers[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, kind)
	}
	d.handlers[kind] = h
	d.logger.Info("handler registered", zap.String("action", string(kind)))
	return nil
}

// Kinds lists the registered action kinds, sorted.
func (d *Dispatcher) Kinds() []model.ActionKind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]model.ActionKind, 0, len(d.handlers))
	for kind := range d.handlers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// History exposes the execution log backing this dispatcher.
func (d *Dispatcher) History() *History {
	return d.history
}

// Execute runs the rule's action against the alert, retrying failures
// up to the rule's retry budget with doubling backoff. The returned
// record reflects the final attempt and has already been appended to
// the history.
func (d *Dispatcher) Execute(ctx context.Context, rule *model.SelfHealingRule, alert *model.AlertRecord) *model.ActionExecutionRecord {
	started := time.Now()
	record := &model.ActionExecutionRecord{
		ID:       uuid.New().String(),
		RuleID:   rule.ID,
		RuleName: rule.Name,
		AlertID:  alert.ID,
		Action:   rule.Action.Kind,
	}

	handler := d.handler(rule.Action.Kind)
	if handler == nil {
		record.Attempts = 1
		record.Outcome = model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("%v: %s", ErrNoHandler, rule.Action.Kind),
		}
		d.finish(ctx, record, started)
		return record
	}

	maxAttempts := rule.MaxRetries + 1
	var outcome *model.ActionOutcome
attempts:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record.Attempts = attempt
		outcome = d.attempt(ctx, handler, rule.Action, alert)
		if outcome.Success {
			break
		}
		if ctx.Err() != nil {
			outcome = cancelledOutcome(ctx)
			break
		}
		if attempt == maxAttempts {
			break
		}

		delay := d.retryBackoff << (attempt - 1)
		d.logger.Warn("action attempt failed, retrying",
			zap.String("rule_id", rule.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.String("message", outcome.Message))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			outcome = cancelledOutcome(ctx)
			break attempts
		}
	}

	record.Outcome = *outcome
	d.finish(ctx, record, started)
	return record
}

// attempt runs the handler once, converting errors and panics into
// failure outcomes.
func (d *Dispatcher) attempt(ctx context.Context, handler Handler, action model.ActionSpec, alert *model.AlertRecord) (outcome *model.ActionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				zap.String("action", string(action.Kind)),
				zap.Any("panic", r))
			outcome = &model.ActionOutcome{
				Success: false,
				Message: fmt.Sprintf("handler panic: %v", r),
			}
		}
	}()

	result, err := handler.Execute(ctx, action, alert)
	if err != nil {
		return &model.ActionOutcome{Success: false, Message: err.Error()}
	}
	if result == nil {
		return &model.ActionOutcome{Success: false, Message: "handler returned no outcome"}
	}
	return result
}

// finish stamps, logs, records, and counts a completed execution.
func (d *Dispatcher) finish(ctx context.Context, record *model.ActionExecutionRecord, started time.Time) {
	record.Timestamp = time.Now()
	duration := record.Timestamp.Sub(started)

	d.history.Append(ctx, *record)
	d.metrics.ObserveAction(string(record.Action), record.Outcome.Success, duration)

	if record.Outcome.Success {
		d.logger.Info("action succeeded",
			zap.String("rule_id", record.RuleID),
			zap.String("alert_id", record.AlertID),
			zap.String("action", string(record.Action)),
			zap.Int("attempts", record.Attempts),
			zap.Duration("duration", duration))
		return
	}
	d.logger.Warn("action failed",
		zap.String("rule_id", record.RuleID),
		zap.String("alert_id", record.AlertID),
		zap.String("action", string(record.Action)),
		zap.Int("attempts", record.Attempts),
		zap.String("message", record.Outcome.Message))
}

func (d *Dispatcher) handler(kind model.ActionKind) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[kind]
}

func cancelledOutcome(ctx context.Context) *model.ActionOutcome {
	return &model.ActionOutcome{
		Success: false,
		Message: fmt.Sprintf("cancelled: %v", ctx.Err()),
	}
}

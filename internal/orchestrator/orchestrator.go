// Package orchestrator ties the correlation engine to the self-healing
// rule engine. It is the single entry point for external callers:
// monitoring sources push alerts through Process, operators query stats
// and history, and the sweeper drives periodic correlation passes.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/correlate"
	"github.com/RajaMuhammadAwais/AiOps/internal/heal"
	"github.com/RajaMuhammadAwais/AiOps/internal/metrics"
	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// DefaultRecentBuffer bounds how many alerts a correlation pass inside
// Process looks back over.
const DefaultRecentBuffer = 50

// Config carries the facade tunables. Zero values fall back to the
// package defaults.
type Config struct {
	RecentBuffer int              `mapstructure:"recent_buffer"`
	SeverityFn   model.SeverityFn `mapstructure:"-"`
}

// ProcessResult reports what happened to one inbound alert: whether
// correlation suppressed it, how many rules matched, and the execution
// record of every action taken.
type ProcessResult struct {
	AlertID      string                        `json:"alert_id"`
	Suppressed   bool                          `json:"suppressed"`
	MatchedRules int                           `json:"matched_rules"`
	ActionsTaken []model.ActionExecutionRecord `json:"actions_taken"`
}

// Stats aggregates engine state for dashboards and operators.
type Stats struct {
	TotalActions      int     `json:"total_actions"`
	SuccessfulActions int     `json:"successful_actions"`
	SuccessRate       float64 `json:"success_rate"`
	EnabledRules      int     `json:"enabled_rules"`
	ActiveAlerts      int     `json:"active_alerts"`
	ResolvedAlerts    int     `json:"resolved_alerts"`
}

// Orchestrator owns the shared engine state: the recent-alert buffer
// that Process correlates against, and the active/resolved alert maps.
// Locking is confined to that state; no lock is held across a
// correlation pass or an action dispatch.
type Orchestrator struct {
	correlator *correlate.Correlator
	rules      *heal.Engine
	dispatcher *heal.Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger

	severityFn   model.SeverityFn
	recentBuffer int

	mu       sync.Mutex
	recent   []model.AlertRecord
	active   map[string]*model.AlertRecord
	resolved map[string]*model.AlertRecord
}

// New creates the orchestration facade over the given engines.
func New(cfg Config, correlator *correlate.Correlator, rules *heal.Engine, dispatcher *heal.Dispatcher, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	buffer := cfg.RecentBuffer
	if buffer <= 0 {
		buffer = DefaultRecentBuffer
	}
	severityFn := cfg.SeverityFn
	if severityFn == nil {
		severityFn = model.DefaultSeverityFn
	}
	return &Orchestrator{
		correlator:   correlator,
		rules:        rules,
		dispatcher:   dispatcher,
		metrics:      m,
		logger:       logger.Named("orchestrator"),
		severityFn:   severityFn,
		recentBuffer: buffer,
		active:       make(map[string]*model.AlertRecord),
		resolved:     make(map[string]*model.AlertRecord),
	}
}

// Process runs one alert through the full pipeline: admit it into the
// recent buffer, correlate it against the buffer, and if correlation
// leaves it actionable, evaluate the self-healing rules and dispatch
// every selected action. An alert that correlation folds into a group
// or suppresses as noise never reaches rule evaluation.
//
// The only returned error is context cancellation; everything else
// degrades into the result so one bad alert never halts the stream.
func (o *Orchestrator) Process(ctx context.Context, alert model.AlertRecord) (*ProcessResult, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	o.metrics.AlertsIngested(1)

	window := o.admit(alert)
	correlation, err := o.correlator.Correlate(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("correlate: %w", err)
	}

	result := &ProcessResult{AlertID: alert.ID}
	if !containsAlert(correlation.Unique, alert.ID) {
		result.Suppressed = true
		o.logger.Info("alert suppressed by correlation",
			zap.String("alert_id", alert.ID),
			zap.String("name", alert.Name))
		return result, nil
	}

	selected := o.rules.Evaluate(&alert)
	result.MatchedRules = len(selected)
	for i := range selected {
		record := o.dispatcher.Execute(ctx, &selected[i], &alert)
		result.ActionsTaken = append(result.ActionsTaken, *record)
	}

	o.logger.Info("alert processed",
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.Int("matched_rules", result.MatchedRules),
		zap.Int("actions_taken", len(result.ActionsTaken)))
	return result, nil
}

// Correlate runs a correlation pass over the given alerts without
// touching the facade's own buffers.
func (o *Orchestrator) Correlate(ctx context.Context, alerts []model.AlertRecord) (*model.CorrelationResult, error) {
	return o.correlator.Correlate(ctx, alerts)
}

// CorrelateRecent runs a correlation pass over the recent-alert buffer.
// The sweeper calls this periodically to pick up patterns that emerge
// across alerts processed far apart.
func (o *Orchestrator) CorrelateRecent(ctx context.Context) (*model.CorrelationResult, error) {
	o.mu.Lock()
	window := make([]model.AlertRecord, len(o.recent))
	copy(window, o.recent)
	o.mu.Unlock()
	return o.correlator.Correlate(ctx, window)
}

// AlertsFromAnomalies converts scored anomaly records into alerts,
// deriving severity through the configured scoring function.
func (o *Orchestrator) AlertsFromAnomalies(anomalies []model.AnomalyRecord) []model.AlertRecord {
	alerts := make([]model.AlertRecord, 0, len(anomalies))
	for _, anomaly := range anomalies {
		message := fmt.Sprintf("Anomaly score %.3f on %s (observed %.2f)",
			anomaly.Score, anomaly.MetricName, anomaly.ObservedValue)
		if anomaly.PredictedLow != nil && anomaly.PredictedHigh != nil {
			message += fmt.Sprintf(", expected %.2f..%.2f", *anomaly.PredictedLow, *anomaly.PredictedHigh)
		}

		labels := make(map[string]string, len(anomaly.Labels))
		for k, v := range anomaly.Labels {
			labels[k] = v
		}

		alerts = append(alerts, model.AlertRecord{
			ID:        uuid.New().String(),
			Name:      "Anomaly detected: " + anomaly.MetricName,
			Severity:  o.severityFn(anomaly),
			Source:    model.SourceSystem,
			Timestamp: anomaly.Timestamp,
			Message:   message,
			Labels:    labels,
			Metrics:   []model.MetricSample{{Name: anomaly.MetricName, Value: anomaly.ObservedValue}},
		})
	}
	o.metrics.AnomaliesConverted(len(alerts))
	return alerts
}

// ResolveAlert moves an alert from the active set to the resolved set,
// stamping its resolution time and keeping the operator's note.
func (o *Orchestrator) ResolveAlert(id, note string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	alert, ok := o.active[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	alert.Resolve(time.Now(), note)
	delete(o.active, id)
	o.resolved[id] = alert
	o.metrics.SetAlertCounts(len(o.active), len(o.resolved))

	o.logger.Info("alert resolved", zap.String("alert_id", id))
	return nil
}

// ActiveAlerts returns copies of the unresolved alerts, oldest first.
func (o *Orchestrator) ActiveAlerts() []model.AlertRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.AlertRecord, 0, len(o.active))
	for _, alert := range o.active {
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// ResolvedAlerts returns copies of the resolved alerts, oldest first.
func (o *Orchestrator) ResolvedAlerts() []model.AlertRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.AlertRecord, 0, len(o.resolved))
	for _, alert := range o.resolved {
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Stats reports aggregate engine state.
func (o *Orchestrator) Stats() Stats {
	actionStats := o.dispatcher.History().Stats()

	o.mu.Lock()
	active, resolved := len(o.active), len(o.resolved)
	o.mu.Unlock()

	return Stats{
		TotalActions:      actionStats.TotalActions,
		SuccessfulActions: actionStats.SuccessfulActions,
		SuccessRate:       actionStats.SuccessRate,
		EnabledRules:      o.rules.EnabledCount(),
		ActiveAlerts:      active,
		ResolvedAlerts:    resolved,
	}
}

// History returns the execution records from the trailing window.
func (o *Orchestrator) History(since time.Duration) []model.ActionExecutionRecord {
	return o.dispatcher.History().Since(since)
}

// AdjustThreshold applies correlation feedback from an operator or an
// ML layer.
func (o *Orchestrator) AdjustThreshold(fb correlate.Feedback) (float64, error) {
	return o.correlator.AdjustThreshold(fb)
}

// RegisterSuppression registers a noise pattern signature directly.
func (o *Orchestrator) RegisterSuppression(signature string) {
	o.correlator.RegisterSuppression(signature)
}

// admit appends the alert to the bounded recent buffer and the active
// set, returning a snapshot of the buffer for correlation.
func (o *Orchestrator) admit(alert model.AlertRecord) []model.AlertRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.recent = append(o.recent, alert)
	if len(o.recent) > o.recentBuffer {
		o.recent = o.recent[len(o.recent)-o.recentBuffer:]
	}
	stored := alert
	o.active[alert.ID] = &stored
	o.metrics.SetAlertCounts(len(o.active), len(o.resolved))

	window := make([]model.AlertRecord, len(o.recent))
	copy(window, o.recent)
	return window
}

func containsAlert(alerts []model.AlertRecord, id string) bool {
	for i := range alerts {
		if alerts[i].ID == id {
			return true
		}
	}
	return false
}

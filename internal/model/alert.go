package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Severity represents the severity level of an alert, ordered
// low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the ordering weight of a severity. Unknown severities
// weigh the same as low.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// ParseSeverity validates and normalizes a severity string.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(s)) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("unknown severity: %q", s)
}

// AlertSource identifies the system that produced an alert.
type AlertSource string

const (
	SourcePrometheus    AlertSource = "prometheus"
	SourceElasticsearch AlertSource = "elasticsearch"
	SourceCustom        AlertSource = "custom"
	SourceSystem        AlertSource = "system"
)

// MetricSample is one named metric value attached to an alert.
type MetricSample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// AlertRecord represents a single alert or anomaly event. Records are
// treated as immutable once created except for the resolution fields,
// which are set through Resolve.
type AlertRecord struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Severity       Severity          `json:"severity"`
	Source         AlertSource       `json:"source"`
	Timestamp      time.Time         `json:"timestamp"`
	Message        string            `json:"message"`
	Labels         map[string]string `json:"labels,omitempty"`
	Metrics        []MetricSample    `json:"metrics,omitempty"`
	Resolved       bool              `json:"resolved"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	ResolutionNote string            `json:"resolution_note,omitempty"`
}

// Resolve marks the alert resolved at the given time. The note is
// free-form operator context and may be empty.
func (a *AlertRecord) Resolve(at time.Time, note string) {
	a.Resolved = true
	a.ResolvedAt = &at
	a.ResolutionNote = note
}

// MetricValue looks up a metric on the alert by substring match on the
// sample name (case-insensitive), falling back to a label of the same
// name holding a numeric value. The boolean reports whether a value was
// found; a missing metric is not an error.
func (a *AlertRecord) MetricValue(name string) (float64, bool) {
	needle := strings.ToLower(name)
	for _, m := range a.Metrics {
		if strings.Contains(strings.ToLower(m.Name), needle) {
			return m.Value, true
		}
	}
	if raw, ok := a.Labels[name]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// AnomalyRecord is one scored observation from an anomaly source.
// Predicted bounds are optional: forecast-band detectors set them,
// plain outlier detectors do not.
type AnomalyRecord struct {
	MetricName    string            `json:"metric_name"`
	Score         float64           `json:"score"`
	ObservedValue float64           `json:"observed_value"`
	PredictedLow  *float64          `json:"predicted_low,omitempty"`
	PredictedHigh *float64          `json:"predicted_high,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// SeverityFn derives an alert severity from an anomaly record. Callers
// converting anomalies to alerts supply their own scoring function or
// use DefaultSeverityFn.
type SeverityFn func(AnomalyRecord) Severity

// DefaultSeverityFn maps the absolute anomaly score onto severity
// levels: >= 0.9 critical, >= 0.7 high, >= 0.4 medium, otherwise low.
func DefaultSeverityFn(a AnomalyRecord) Severity {
	score := a.Score
	if score < 0 {
		score = -score
	}
	switch {
	case score >= 0.9:
		return SeverityCritical
	case score >= 0.7:
		return SeverityHigh
	case score >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Package metrics exposes the engine's own operational counters via
// Prometheus. A nil *Metrics is valid and records nothing, so callers
// never need to guard their instrumentation points.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's collectors on a private registry so
// multiple instances (and tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	alertsIngested      prometheus.Counter
	alertsSuppressed    prometheus.Counter
	anomaliesConverted  prometheus.Counter
	correlationGroups   prometheus.Counter
	correlationDuration prometheus.Histogram
	actionsTotal        *prometheus.CounterVec
	actionDuration      *prometheus.HistogramVec
	rulesEnabled        prometheus.Gauge
	alertsActive        prometheus.Gauge
	alertsResolved      prometheus.Gauge
	suppressionPatterns prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		alertsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aiops",
			Name:      "alerts_ingested_total",
			Help:      "Alerts accepted for processing.",
		}),
		alertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aiops",
			Name:      "alerts_suppressed_total",
			Help:      "Alerts suppressed as noise by correlation.",
		}),
		anomaliesConverted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aiops",
			Name:      "anomalies_converted_total",
			Help:      "Anomaly records converted into alerts.",
		}),
		correlationGroups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aiops",
			Name:      "correlation_groups_total",
			Help:      "Correlated groups emitted across all passes.",
		}),
		correlationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aiops",
			Name:      "correlation_duration_seconds",
			Help:      "Wall time of one correlation pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiops",
			Name:      "actions_total",
			Help:      "Remediation actions dispatched, by kind and outcome.",
		}, []string{"action", "outcome"}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiops",
			Name:      "action_duration_seconds",
			Help:      "Wall time of remediation actions, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		rulesEnabled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiops",
			Name:      "rules_enabled",
			Help:      "Self-healing rules currently enabled.",
		}),
		alertsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiops",
			Name:      "alerts_active",
			Help:      "Alerts currently tracked as active.",
		}),
		alertsResolved: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiops",
			Name:      "alerts_resolved",
			Help:      "Alerts resolved since startup.",
		}),
		suppressionPatterns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiops",
			Name:      "suppression_patterns",
			Help:      "Learned noise suppression patterns held in memory.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AlertsIngested counts alerts accepted from any source.
func (m *Metrics) AlertsIngested(n int) {
	if m == nil {
		return
	}
	m.alertsIngested.Add(float64(n))
}

// AnomaliesConverted counts anomaly records turned into alerts.
func (m *Metrics) AnomaliesConverted(n int) {
	if m == nil {
		return
	}
	m.anomaliesConverted.Add(float64(n))
}

// ObserveCorrelation records the shape and duration of one pass.
func (m *Metrics) ObserveCorrelation(d time.Duration, groups, suppressed int) {
	if m == nil {
		return
	}
	m.correlationDuration.Observe(d.Seconds())
	m.correlationGroups.Add(float64(groups))
	m.alertsSuppressed.Add(float64(suppressed))
}

// ObserveAction records one dispatched action.
func (m *Metrics) ObserveAction(action string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// SetRulesEnabled tracks how many rules are enabled.
func (m *Metrics) SetRulesEnabled(n int) {
	if m == nil {
		return
	}
	m.rulesEnabled.Set(float64(n))
}

// SetAlertCounts tracks the active and resolved alert gauges.
func (m *Metrics) SetAlertCounts(active, resolved int) {
	if m == nil {
		return
	}
	m.alertsActive.Set(float64(active))
	m.alertsResolved.Set(float64(resolved))
}

// SetSuppressionPatterns tracks the learned pattern count.
func (m *Metrics) SetSuppressionPatterns(n int) {
	if m == nil {
		return
	}
	m.suppressionPatterns.Set(float64(n))
}

package correlate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/metrics"
	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Defaults for the correlation pipeline. The noise thresholds are
// heuristics carried over from operating experience; they are
// configurable rather than fixed.
const (
	DefaultTimeWindow          = 15 * time.Minute
	DefaultSimilarityThreshold = 0.7
	DefaultMaxClusterSize      = 10
	DefaultRepeatThreshold     = 5

	thresholdStep = 0.05
	thresholdMin  = 0.5
	thresholdMax  = 0.9
)

// Feedback tunes the similarity threshold from the outside: an
// operator or ML layer judging recent groupings.
type Feedback string

const (
	// FeedbackTooAggressive reports that unrelated alerts were grouped
	// together; the threshold is raised.
	FeedbackTooAggressive Feedback = "too_aggressive"
	// FeedbackTooConservative reports that related alerts were left
	// ungrouped; the threshold is lowered.
	FeedbackTooConservative Feedback = "too_conservative"
)

// Config carries the tunables of a Correlator. Zero values fall back
// to the package defaults.
type Config struct {
	TimeWindow          time.Duration `mapstructure:"time_window"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	MaxClusterSize      int           `mapstructure:"max_cluster_size"`
	RepeatThreshold     int           `mapstructure:"repeat_threshold"`
}

// Stats is a snapshot of the correlator's noise-reduction state.
type Stats struct {
	SuppressedPatterns  int           `json:"suppressed_patterns"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
	TimeWindow          time.Duration `json:"time_window"`
	Patterns            []string      `json:"patterns"`
}

// Correlator reduces a batch of alerts to correlated groups, a unique
// alert set, and suppressed noise. Correlation passes are read-only
// except for suppression learning, so one instance may serve
// concurrent callers.
type Correlator struct {
	grouper    *Grouper
	classifier *Classifier
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu        sync.RWMutex
	threshold float64
}

// New creates a Correlator from the given config.
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Correlator {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Correlator{
		grouper:    NewGrouper(cfg.TimeWindow, logger),
		classifier: NewClassifier(cfg.MaxClusterSize, cfg.RepeatThreshold, logger),
		metrics:    m,
		logger:     logger.Named("correlator"),
		threshold:  threshold,
	}
}

// Correlate runs one correlation pass over the alerts. Singleton
// clusters pass straight into the unique set; multi-member clusters are
// either suppressed as noise (keeping none of their members, with the
// non-primary members reported as suppressed) or emitted as a
// correlated group represented by their primary alert. The same input
// against the same suppression state always yields the same result.
func (c *Correlator) Correlate(ctx context.Context, alerts []model.AlertRecord) (*model.CorrelationResult, error) {
	started := time.Now()
	result := &model.CorrelationResult{ProcessedAt: started}
	if len(alerts) == 0 {
		return result, nil
	}

	clusters := c.grouper.Group(alerts, c.Threshold())
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(cluster) == 1 {
			result.Unique = append(result.Unique, cluster[0])
			continue
		}

		pattern := extractPattern(cluster)
		primary := selectPrimary(cluster)
		if noise, reason := c.classifier.Classify(cluster, pattern); noise {
			for i := range cluster {
				if cluster[i].ID != primary.ID {
					result.Suppressed = append(result.Suppressed, cluster[i])
				}
			}
			c.logger.Debug("suppressed noisy cluster",
				zap.String("reason", reason),
				zap.Int("cluster_size", len(cluster)),
				zap.String("signature", pattern.Signature()))
			continue
		}

		group := model.CorrelationGroup{
			ID:        uuid.New().String(),
			Alerts:    cluster,
			Primary:   primary,
			Score:     groupScore(cluster, c.grouper.Window()),
			Pattern:   pattern,
			CreatedAt: started,
		}
		result.Groups = append(result.Groups, group)
		result.Unique = append(result.Unique, primary)
	}

	result.NoiseReductionRatio = float64(len(result.Suppressed)) / float64(len(alerts))

	c.metrics.ObserveCorrelation(time.Since(started), len(result.Groups), len(result.Suppressed))
	c.metrics.SetSuppressionPatterns(c.classifier.SuppressedCount())
	c.logger.Info("correlation pass complete",
		zap.Int("alerts", len(alerts)),
		zap.Int("groups", len(result.Groups)),
		zap.Int("unique", len(result.Unique)),
		zap.Int("suppressed", len(result.Suppressed)),
		zap.Float64("noise_reduction", result.NoiseReductionRatio))
	return result, nil
}

// AdjustThreshold applies operator feedback to the similarity
// threshold, stepping it by 0.05 within [0.5, 0.9], and returns the
// new value.
func (c *Correlator) AdjustThreshold(fb Feedback) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch fb {
	case FeedbackTooAggressive:
		c.threshold = min(thresholdMax, c.threshold+thresholdStep)
	case FeedbackTooConservative:
		c.threshold = max(thresholdMin, c.threshold-thresholdStep)
	default:
		return c.threshold, fmt.Errorf("unknown feedback: %q", fb)
	}
	c.logger.Info("similarity threshold adjusted",
		zap.String("feedback", string(fb)),
		zap.Float64("threshold", c.threshold))
	return c.threshold, nil
}

// Threshold returns the current similarity threshold.
func (c *Correlator) Threshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// RegisterSuppression records a pattern signature directly, bypassing
// classification. Registering the same signature twice is a no-op.
func (c *Correlator) RegisterSuppression(signature string) {
	c.classifier.Suppress(signature)
	c.metrics.SetSuppressionPatterns(c.classifier.SuppressedCount())
}

// SuppressionCount returns the number of learned patterns.
func (c *Correlator) SuppressionCount() int {
	return c.classifier.SuppressedCount()
}

// Stats reports the live noise-reduction state.
func (c *Correlator) Stats() Stats {
	patterns := c.classifier.Patterns()
	return Stats{
		SuppressedPatterns:  len(patterns),
		SimilarityThreshold: c.Threshold(),
		TimeWindow:          c.grouper.Window(),
		Patterns:            patterns,
	}
}

// selectPrimary picks the representative alert of a cluster: highest
// severity first, earliest timestamp breaking ties.
func selectPrimary(cluster []model.AlertRecord) model.AlertRecord {
	primary := cluster[0]
	for _, candidate := range cluster[1:] {
		if candidate.Severity.Weight() > primary.Severity.Weight() {
			primary = candidate
			continue
		}
		if candidate.Severity.Weight() == primary.Severity.Weight() &&
			candidate.Timestamp.Before(primary.Timestamp) {
			primary = candidate
		}
	}
	return primary
}

// groupScore grades a cluster in [0, 1]: larger clusters score higher,
// mixed severities score lower, and a tight time span scores higher
// than one spread across the whole window.
func groupScore(cluster []model.AlertRecord, window time.Duration) float64 {
	sizeScore := float64(len(cluster)) / 10.0
	if sizeScore > 1 {
		sizeScore = 1
	}

	severities := make(map[model.Severity]struct{}, 4)
	earliest, latest := cluster[0].Timestamp, cluster[0].Timestamp
	for i := range cluster {
		severities[cluster[i].Severity] = struct{}{}
		if cluster[i].Timestamp.Before(earliest) {
			earliest = cluster[i].Timestamp
		}
		if cluster[i].Timestamp.After(latest) {
			latest = cluster[i].Timestamp
		}
	}
	severityScore := 1.0 - float64(len(severities))/4.0

	timeScore := 1.0 - latest.Sub(earliest).Seconds()/window.Seconds()
	if timeScore < 0 {
		timeScore = 0
	}

	return 0.4*sizeScore + 0.3*severityScore + 0.3*timeScore
}

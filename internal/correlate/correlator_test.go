package correlate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

func newTestCorrelator(t *testing.T) *Correlator {
	t.Helper()
	return New(Config{}, nil, zaptest.NewLogger(t))
}

func TestCorrelateEmptyInput(t *testing.T) {
	c := newTestCorrelator(t)
	result, err := c.Correlate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Unique)
	assert.Empty(t, result.Suppressed)
	assert.Zero(t, result.NoiseReductionRatio)
}

func TestCorrelateNoiseStorm(t *testing.T) {
	// Twelve identical low-severity alerts from one service within five
	// minutes: one cluster, suppressed by the size rule. Eleven
	// non-primary members are reported suppressed and the primary is
	// dropped from the output.
	c := newTestCorrelator(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	alerts := make([]model.AlertRecord, 12)
	for i := range alerts {
		alerts[i] = model.AlertRecord{
			ID:        fmt.Sprintf("storm-%d", i),
			Name:      "HighPingLatency",
			Severity:  model.SeverityLow,
			Source:    model.SourcePrometheus,
			Timestamp: base.Add(time.Duration(i*25) * time.Second),
			Message:   "ping latency above threshold",
			Labels:    map[string]string{"service": "web"},
		}
	}

	result, err := c.Correlate(context.Background(), alerts)
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Unique)
	assert.Len(t, result.Suppressed, 11)
	assert.InDelta(t, 11.0/12.0, result.NoiseReductionRatio, 1e-9)
}

func TestCorrelateSingleCriticalAlert(t *testing.T) {
	c := newTestCorrelator(t)
	alert := model.AlertRecord{
		ID:        "crit-1",
		Name:      "DatabaseDown",
		Severity:  model.SeverityCritical,
		Source:    model.SourcePrometheus,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Message:   "primary database unreachable",
		Labels:    map[string]string{"service": "db"},
	}

	result, err := c.Correlate(context.Background(), []model.AlertRecord{alert})
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Suppressed)
	require.Len(t, result.Unique, 1)
	assert.Equal(t, alert, result.Unique[0])
	assert.Zero(t, result.NoiseReductionRatio)
}

func incidentCluster(base time.Time) []model.AlertRecord {
	// Same service and message so similarity is exact, but mixed
	// severities keep the cluster out of every noise rule.
	severities := []model.Severity{
		model.SeverityHigh,
		model.SeverityCritical,
		model.SeverityMedium,
	}
	alerts := make([]model.AlertRecord, len(severities))
	for i, sev := range severities {
		alerts[i] = model.AlertRecord{
			ID:        fmt.Sprintf("inc-%d", i),
			Name:      "CheckoutErrors",
			Severity:  sev,
			Source:    model.SourcePrometheus,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Message:   "error rate above objective",
			Labels:    map[string]string{"service": "checkout"},
		}
	}
	return alerts
}

func TestCorrelateGroupsGenuineIncident(t *testing.T) {
	c := newTestCorrelator(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := c.Correlate(context.Background(), incidentCluster(base))
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Empty(t, result.Suppressed)

	group := result.Groups[0]
	assert.Len(t, group.Alerts, 3)
	assert.Equal(t, "inc-1", group.Primary.ID, "critical member must be primary")
	assert.NotEmpty(t, group.ID)
	assert.GreaterOrEqual(t, group.Score, 0.0)
	assert.LessOrEqual(t, group.Score, 1.0)
	assert.Equal(t, []string{"checkout"}, group.Pattern.Services)
	assert.Equal(t, "error rate above objective", group.Pattern.MessagePattern)

	require.Len(t, result.Unique, 1)
	assert.Equal(t, "inc-1", result.Unique[0].ID)
}

func TestCorrelatePrimaryTieBreaksByTime(t *testing.T) {
	c := newTestCorrelator(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	alerts := incidentCluster(base)
	for i := range alerts {
		alerts[i].Severity = model.SeverityHigh
	}
	// With severities tied, the earliest member must win.
	result, err := c.Correlate(context.Background(), alerts)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "inc-0", result.Groups[0].Primary.ID)
}

func TestCorrelateAccounting(t *testing.T) {
	// One noise cluster (6 repeated medium alerts), one genuine group
	// of 3, and one singleton: every input alert is accounted for as
	// unique, suppressed, a non-primary group member, or a dropped
	// noise primary.
	c := newTestCorrelator(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var alerts []model.AlertRecord
	for i := 0; i < 6; i++ {
		alerts = append(alerts, model.AlertRecord{
			ID:        fmt.Sprintf("noise-%d", i),
			Name:      "SessionStoreTimeout",
			Severity:  model.SeverityMedium,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Message:   "session store timed out",
			Labels:    map[string]string{"service": "sessions"},
		})
	}
	alerts = append(alerts, incidentCluster(base.Add(time.Hour))...)
	alerts = append(alerts, model.AlertRecord{
		ID:        "lone-1",
		Name:      "CertExpiry",
		Severity:  model.SeverityHigh,
		Timestamp: base.Add(3 * time.Hour),
		Message:   "certificate expires soon",
	})

	result, err := c.Correlate(context.Background(), alerts)
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Suppressed, 5)
	assert.Len(t, result.Unique, 2)

	nonPrimaryMembers := 0
	for _, g := range result.Groups {
		nonPrimaryMembers += len(g.Alerts) - 1
	}
	droppedNoisePrimaries := 1
	total := len(result.Unique) + len(result.Suppressed) + nonPrimaryMembers + droppedNoisePrimaries
	assert.Equal(t, len(alerts), total)
}

func TestCorrelateDeterminism(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var alerts []model.AlertRecord
	alerts = append(alerts, incidentCluster(base)...)
	alerts = append(alerts, model.AlertRecord{
		ID: "solo", Name: "DiskFull", Severity: model.SeverityHigh,
		Timestamp: base.Add(2 * time.Hour), Message: "disk almost full",
	})

	groupsOf := func(result *model.CorrelationResult) [][]string {
		out := make([][]string, len(result.Groups))
		for i, g := range result.Groups {
			out[i] = append(clusterIDs(g.Alerts), g.Primary.ID)
		}
		return out
	}

	first, err := newTestCorrelator(t).Correlate(context.Background(), alerts)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := newTestCorrelator(t).Correlate(context.Background(), alerts)
		require.NoError(t, err)
		assert.Equal(t, groupsOf(first), groupsOf(again))
		assert.Equal(t, clusterIDs(first.Unique), clusterIDs(again.Unique))
		assert.Equal(t, clusterIDs(first.Suppressed), clusterIDs(again.Suppressed))
	}
}

func TestCorrelateRegisteredSuppression(t *testing.T) {
	c := newTestCorrelator(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	alerts := incidentCluster(base)

	signature := extractPattern(alerts).Signature()
	c.RegisterSuppression(signature)
	c.RegisterSuppression(signature)
	assert.Equal(t, 1, c.SuppressionCount())

	result, err := c.Correlate(context.Background(), alerts)
	require.NoError(t, err)
	assert.Empty(t, result.Groups, "suppressed pattern must not form a group")
	assert.Len(t, result.Suppressed, 2)
	assert.Empty(t, result.Unique)
}

func TestAdjustThreshold(t *testing.T) {
	c := newTestCorrelator(t)
	require.InDelta(t, DefaultSimilarityThreshold, c.Threshold(), 1e-9)

	t.Run("too aggressive raises until clamp", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			_, err := c.AdjustThreshold(FeedbackTooAggressive)
			require.NoError(t, err)
		}
		assert.InDelta(t, 0.9, c.Threshold(), 1e-9)
	})

	t.Run("too conservative lowers until clamp", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			_, err := c.AdjustThreshold(FeedbackTooConservative)
			require.NoError(t, err)
		}
		assert.InDelta(t, 0.5, c.Threshold(), 1e-9)
	})

	t.Run("unknown feedback is rejected", func(t *testing.T) {
		before := c.Threshold()
		_, err := c.AdjustThreshold(Feedback("shrug"))
		assert.Error(t, err)
		assert.InDelta(t, before, c.Threshold(), 1e-9)
	})
}

func TestCorrelateCancelled(t *testing.T) {
	c := newTestCorrelator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Correlate(ctx, incidentCluster(time.Now()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCorrelatorStats(t *testing.T) {
	c := newTestCorrelator(t)

	stats := c.Stats()
	assert.Zero(t, stats.SuppressedPatterns)
	assert.InDelta(t, DefaultSimilarityThreshold, stats.SimilarityThreshold, 1e-9)
	assert.Equal(t, DefaultTimeWindow, stats.TimeWindow)
	assert.Empty(t, stats.Patterns)

	c.RegisterSuppression("service=web|restart loop")
	c.RegisterSuppression("service=db|replica lag")
	_, err := c.AdjustThreshold(FeedbackTooAggressive)
	require.NoError(t, err)

	stats = c.Stats()
	assert.Equal(t, 2, stats.SuppressedPatterns)
	assert.InDelta(t, 0.75, stats.SimilarityThreshold, 1e-9)
	assert.Equal(t, []string{"service=db|replica lag", "service=web|restart loop"}, stats.Patterns)
}

package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

func alertAt(id, message string, ts time.Time) model.AlertRecord {
	return model.AlertRecord{
		ID:        id,
		Severity:  model.SeverityMedium,
		Source:    model.SourceCustom,
		Timestamp: ts,
		Message:   message,
	}
}

func clusterIDs(cluster []model.AlertRecord) []string {
	ids := make([]string, len(cluster))
	for i := range cluster {
		ids[i] = cluster[i].ID
	}
	return ids
}

func TestGrouperEmptyInput(t *testing.T) {
	g := NewGrouper(0, zaptest.NewLogger(t))
	assert.Empty(t, g.Group(nil, DefaultSimilarityThreshold))
}

func TestGrouperTimeBuckets(t *testing.T) {
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Identical messages, but the third alert arrives an hour later, so
	// it must land in its own bucket.
	alerts := []model.AlertRecord{
		alertAt("a1", "disk pressure on node", base),
		alertAt("a2", "disk pressure on node", base.Add(5*time.Minute)),
		alertAt("a3", "disk pressure on node", base.Add(65*time.Minute)),
	}

	clusters := g.Group(alerts, DefaultSimilarityThreshold)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a1", "a2"}, clusterIDs(clusters[0]))
	assert.Equal(t, []string{"a3"}, clusterIDs(clusters[1]))
}

func TestGrouperSortsUnorderedInput(t *testing.T) {
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	alerts := []model.AlertRecord{
		alertAt("late", "queue depth rising", base.Add(40*time.Minute)),
		alertAt("early", "queue depth rising", base),
	}

	clusters := g.Group(alerts, DefaultSimilarityThreshold)
	require.Len(t, clusters, 2)
	assert.Equal(t, "early", clusters[0][0].ID)
	assert.Equal(t, "late", clusters[1][0].ID)
}

func TestGrouperIdenticalAlertsCluster(t *testing.T) {
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var alerts []model.AlertRecord
	for i := 0; i < 4; i++ {
		a := alertAt("", "connection refused by payment gateway", base.Add(time.Duration(i)*time.Minute))
		a.ID = string(rune('a' + i))
		a.Labels = map[string]string{"service": "payments"}
		alerts = append(alerts, a)
	}

	clusters := g.Group(alerts, DefaultSimilarityThreshold)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 4)
}

func TestGrouperDissimilarAlertsStaySeparate(t *testing.T) {
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	alerts := []model.AlertRecord{
		alertAt("a1", "certificate expires tomorrow", base),
		alertAt("a2", "replication lag exceeded budget", base.Add(time.Minute)),
	}

	clusters := g.Group(alerts, DefaultSimilarityThreshold)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 1)
	assert.Len(t, clusters[1], 1)
}

func TestGrouperTransitiveChaining(t *testing.T) {
	// Three alerts with overlapping vocabulary: adjacent pairs score
	// about 0.62 while the outer pair scores about 0.31. At threshold
	// 0.5 the chain pulls all three into one cluster even though the
	// ends are not directly similar; at 0.75 the chain breaks apart.
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	alerts := []model.AlertRecord{
		alertAt("a1", "aa bb cc dd", base),
		alertAt("a2", "bb cc dd ee", base.Add(time.Minute)),
		alertAt("a3", "cc dd ee ff", base.Add(2*time.Minute)),
	}
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))

	t.Run("chained at 0.5", func(t *testing.T) {
		clusters := g.Group(alerts, 0.5)
		require.Len(t, clusters, 1)
		assert.Equal(t, []string{"a1", "a2", "a3"}, clusterIDs(clusters[0]))
	})

	t.Run("separate at 0.75", func(t *testing.T) {
		clusters := g.Group(alerts, 0.75)
		assert.Len(t, clusters, 3)
	})
}

func TestGrouperEmptyTextBucket(t *testing.T) {
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// No name, message, or labels anywhere: nothing to compare, so the
	// bucket collapses into a single trivial cluster.
	alerts := []model.AlertRecord{
		{ID: "e1", Timestamp: base},
		{ID: "e2", Timestamp: base.Add(time.Minute)},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute)},
	}

	clusters := g.Group(alerts, DefaultSimilarityThreshold)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 3)
}

func TestGrouperDeterminism(t *testing.T) {
	g := NewGrouper(15*time.Minute, zaptest.NewLogger(t))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	alerts := []model.AlertRecord{
		alertAt("a1", "high cpu usage on web-01", base),
		alertAt("a2", "high cpu usage on web-02", base.Add(time.Minute)),
		alertAt("a3", "out of memory killer invoked", base.Add(2*time.Minute)),
		alertAt("a4", "high cpu usage on web-03", base.Add(3*time.Minute)),
	}

	first := g.Group(alerts, DefaultSimilarityThreshold)
	for i := 0; i < 10; i++ {
		again := g.Group(alerts, DefaultSimilarityThreshold)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, clusterIDs(first[j]), clusterIDs(again[j]))
		}
	}
}

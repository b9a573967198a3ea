package correlate

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Grouper clusters alerts by time proximity and text similarity.
// Alerts are first partitioned into contiguous time buckets; within a
// bucket, alerts whose pairwise similarity reaches the threshold are
// merged into one cluster, with membership closed transitively (a~b
// and b~c puts a and c in the same cluster even if a and c are not
// directly similar).
type Grouper struct {
	window time.Duration
	logger *zap.Logger
}

// NewGrouper creates a grouper with the given time window. A
// non-positive window falls back to the default.
func NewGrouper(window time.Duration, logger *zap.Logger) *Grouper {
	if window <= 0 {
		window = DefaultTimeWindow
	}
	return &Grouper{
		window: window,
		logger: logger.Named("grouper"),
	}
}

// Window returns the bucketing window.
func (g *Grouper) Window() time.Duration {
	return g.window
}

// Group clusters the alerts at the given similarity threshold. The
// input is not modified; output clusters are ordered by time, and the
// same input always yields the same clusters.
func (g *Grouper) Group(alerts []model.AlertRecord, threshold float64) [][]model.AlertRecord {
	if len(alerts) == 0 {
		return nil
	}

	sorted := make([]model.AlertRecord, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var clusters [][]model.AlertRecord
	for _, bucket := range g.bucketize(sorted) {
		clusters = append(clusters, clusterBucket(bucket, threshold)...)
	}

	g.logger.Debug("grouped alerts",
		zap.Int("alerts", len(alerts)),
		zap.Int("clusters", len(clusters)),
		zap.Float64("threshold", threshold))
	return clusters
}

// bucketize splits time-sorted alerts into contiguous buckets, starting
// a new bucket whenever the gap to the previous alert exceeds the
// window.
func (g *Grouper) bucketize(sorted []model.AlertRecord) [][]model.AlertRecord {
	var buckets [][]model.AlertRecord
	current := []model.AlertRecord{sorted[0]}
	for _, alert := range sorted[1:] {
		prev := current[len(current)-1]
		if alert.Timestamp.Sub(prev.Timestamp) > g.window {
			buckets = append(buckets, current)
			current = []model.AlertRecord{alert}
			continue
		}
		current = append(current, alert)
	}
	return append(buckets, current)
}

// clusterBucket runs similarity clustering over one time bucket.
func clusterBucket(bucket []model.AlertRecord, threshold float64) [][]model.AlertRecord {
	if len(bucket) == 1 {
		return [][]model.AlertRecord{bucket}
	}

	docs := make([][]string, len(bucket))
	for i := range bucket {
		docs[i] = tokenize(alertText(&bucket[i]))
	}
	vectors := vectorize(docs)
	if vectors == nil {
		// Nothing to compare: every alert in the bucket is textually
		// empty, so the bucket collapses into one trivial cluster.
		return [][]model.AlertRecord{bucket}
	}

	uf := newUnionFind(len(bucket))
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			if cosine(vectors[i], vectors[j]) >= threshold {
				uf.union(i, j)
			}
		}
	}

	// Emit clusters ordered by their first member so output order
	// follows time order.
	byRoot := make(map[int][]model.AlertRecord)
	var roots []int
	for i := range bucket {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], bucket[i])
	}
	clusters := make([][]model.AlertRecord, 0, len(roots))
	for _, root := range roots {
		clusters = append(clusters, byRoot[root])
	}
	return clusters
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

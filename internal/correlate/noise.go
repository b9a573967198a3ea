package correlate

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Noise classification reasons, reported alongside the verdict.
const (
	reasonSuppressedPattern = "suppressed_pattern"
	reasonClusterSize       = "cluster_size"
	reasonAllLowSeverity    = "all_low_severity"
	reasonRepeatedMessage   = "repeated_message"
)

// Classifier decides whether a correlation cluster is noise. It owns
// the set of learned suppression patterns; the set only grows during a
// run, and inserting a signature twice is a no-op.
type Classifier struct {
	mu         sync.RWMutex
	suppressed map[string]struct{}

	maxClusterSize  int
	repeatThreshold int
	logger          *zap.Logger
}

// NewClassifier creates a classifier. Clusters larger than
// maxClusterSize are always noise; clusters of identical messages from
// one service larger than repeatThreshold are noise and teach the
// classifier their pattern. Non-positive limits fall back to defaults.
func NewClassifier(maxClusterSize, repeatThreshold int, logger *zap.Logger) *Classifier {
	if maxClusterSize <= 0 {
		maxClusterSize = DefaultMaxClusterSize
	}
	if repeatThreshold <= 0 {
		repeatThreshold = DefaultRepeatThreshold
	}
	return &Classifier{
		suppressed:      make(map[string]struct{}),
		maxClusterSize:  maxClusterSize,
		repeatThreshold: repeatThreshold,
		logger:          logger.Named("noise"),
	}
}

// Classify applies the noise rules to a cluster, first match wins:
// a suppressed pattern, an oversized cluster, a cluster of only
// low-severity alerts, or a repeated identical message from a single
// service. The last rule also records the cluster's signature so
// future occurrences are suppressed immediately.
func (c *Classifier) Classify(cluster []model.AlertRecord, pattern model.Pattern) (bool, string) {
	signature := pattern.Signature()

	if c.IsSuppressed(signature) {
		return true, reasonSuppressedPattern
	}

	if len(cluster) > c.maxClusterSize {
		return true, reasonClusterSize
	}

	allLow := true
	for i := range cluster {
		if cluster[i].Severity != model.SeverityLow {
			allLow = false
			break
		}
	}
	if allLow {
		return true, reasonAllLowSeverity
	}

	if len(cluster) > c.repeatThreshold && sameServiceAndMessage(cluster) {
		c.Suppress(signature)
		c.logger.Info("learned suppression pattern",
			zap.String("signature", signature),
			zap.Int("cluster_size", len(cluster)))
		return true, reasonRepeatedMessage
	}

	return false, ""
}

// Suppress records a pattern signature. Safe for concurrent use;
// duplicates are ignored.
func (c *Classifier) Suppress(signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressed[signature] = struct{}{}
}

// IsSuppressed reports whether a signature has been recorded.
func (c *Classifier) IsSuppressed(signature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.suppressed[signature]
	return ok
}

// SuppressedCount returns the number of learned patterns.
func (c *Classifier) SuppressedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.suppressed)
}

// Patterns returns a sorted snapshot of the learned signatures.
func (c *Classifier) Patterns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.suppressed))
	for signature := range c.suppressed {
		out = append(out, signature)
	}
	sort.Strings(out)
	return out
}

// Reset discards all learned patterns.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressed = make(map[string]struct{})
}

// sameServiceAndMessage reports whether every cluster member carries
// the same service label (absent counts as empty) and the same message.
func sameServiceAndMessage(cluster []model.AlertRecord) bool {
	service := cluster[0].Labels["service"]
	message := cluster[0].Message
	for i := 1; i < len(cluster); i++ {
		if cluster[i].Labels["service"] != service || cluster[i].Message != message {
			return false
		}
	}
	return true
}

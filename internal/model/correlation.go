package model

import (
	"sort"
	"strings"
	"time"
)

// Pattern summarizes what the alerts of a correlation group have in
// common. Services lists the distinct service labels, sorted.
type Pattern struct {
	Services       []string          `json:"services,omitempty"`
	CommonLabels   map[string]string `json:"common_labels,omitempty"`
	MessagePattern string            `json:"message_pattern"`
}

// Signature renders the pattern as a stable string key: the common
// labels as sorted key=value pairs, then the message pattern, separated
// by a pipe. Equal patterns always produce equal signatures.
func (p Pattern) Signature() string {
	pairs := make([]string, 0, len(p.CommonLabels))
	for k, v := range p.CommonLabels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",") + "|" + p.MessagePattern
}

// CorrelationGroup is a cluster of related alerts judged to represent
// one underlying incident. Primary is the most severe alert of the
// group (earliest timestamp breaking ties) and Score grades how tightly
// the group hangs together, in [0, 1].
type CorrelationGroup struct {
	ID        string        `json:"id"`
	Alerts    []AlertRecord `json:"alerts"`
	Primary   AlertRecord   `json:"primary_alert"`
	Score     float64       `json:"correlation_score"`
	Pattern   Pattern       `json:"pattern"`
	CreatedAt time.Time     `json:"created_at"`
}

// CorrelationResult is the outcome of one correlation pass.
//
// Unique holds the reduced alert set: every singleton plus the primary
// of each non-noise group. Suppressed holds the non-primary members of
// noise clusters; the primary of a noise cluster is dropped from the
// output entirely. NoiseReductionRatio is |Suppressed| / |input|, zero
// for empty input.
type CorrelationResult struct {
	Groups              []CorrelationGroup `json:"correlated_groups"`
	Unique              []AlertRecord      `json:"unique_alerts"`
	Suppressed          []AlertRecord      `json:"suppressed_alerts"`
	NoiseReductionRatio float64            `json:"noise_reduction_ratio"`
	ProcessedAt         time.Time          `json:"processed_at"`
}

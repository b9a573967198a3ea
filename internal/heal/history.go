package heal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Store persists execution records beyond the in-memory history. The
// history treats persistence as best effort: a store failure is logged,
// never surfaced to the dispatch path.
type Store interface {
	SaveExecution(ctx context.Context, record *model.ActionExecutionRecord) error
}

// Stats aggregates dispatch outcomes. SuccessRate is a percentage in
// [0, 100], zero when nothing has run yet.
type Stats struct {
	TotalActions      int     `json:"total_actions"`
	SuccessfulActions int     `json:"successful_actions"`
	SuccessRate       float64 `json:"success_rate"`
}

// History is the append-only log of action executions. Appends are
// locked so concurrent dispatches never lose or duplicate a record.
type History struct {
	logger *zap.Logger
	store  Store

	mu         sync.RWMutex
	records    []model.ActionExecutionRecord
	successful int
}

// NewHistory creates a history log. store may be nil for in-memory
// operation only.
func NewHistory(store Store, logger *zap.Logger) *History {
	return &History{
		logger: logger.Named("history"),
		store:  store,
	}
}

// Append records one execution.
func (h *History) Append(ctx context.Context, record model.ActionExecutionRecord) {
	h.mu.Lock()
	h.records = append(h.records, record)
	if record.Outcome.Success {
		h.successful++
	}
	h.mu.Unlock()

	if h.store == nil {
		return
	}
	if err := h.store.SaveExecution(ctx, &record); err != nil {
		h.logger.Warn("failed to persist execution record",
			zap.String("record_id", record.ID),
			zap.String("rule_id", record.RuleID),
			zap.Error(err))
	}
}

// Since returns the records whose timestamp falls within the trailing
// window, oldest first.
func (h *History) Since(window time.Duration) []model.ActionExecutionRecord {
	cutoff := time.Now().Add(-window)

	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []model.ActionExecutionRecord
	for _, record := range h.records {
		if record.Timestamp.After(cutoff) {
			out = append(out, record)
		}
	}
	return out
}

// All returns a copy of the full history, oldest first.
func (h *History) All() []model.ActionExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.ActionExecutionRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Stats reports aggregate outcomes over the full history.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{
		TotalActions:      len(h.records),
		SuccessfulActions: h.successful,
	}
	if s.TotalActions > 0 {
		s.SuccessRate = float64(s.SuccessfulActions) / float64(s.TotalActions) * 100
	}
	return s
}

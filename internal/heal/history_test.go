package heal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

func executionAt(id string, ts time.Time, success bool) model.ActionExecutionRecord {
	return model.ActionExecutionRecord{
		ID:        id,
		RuleID:    "r1",
		RuleName:  "Restart service on high CPU",
		AlertID:   "a1",
		Action:    model.ActionServiceRestart,
		Timestamp: ts,
		Attempts:  1,
		Outcome:   model.ActionOutcome{Success: success, Message: "done"},
	}
}

func TestHistorySinceWindow(t *testing.T) {
	h := NewHistory(nil, zaptest.NewLogger(t))
	now := time.Now()

	h.Append(context.Background(), executionAt("old", now.Add(-3*time.Hour), true))
	h.Append(context.Background(), executionAt("recent", now.Add(-10*time.Minute), true))
	h.Append(context.Background(), executionAt("fresh", now.Add(-time.Minute), false))

	within := h.Since(time.Hour)
	require.Len(t, within, 2)
	assert.Equal(t, "recent", within[0].ID)
	assert.Equal(t, "fresh", within[1].ID)

	assert.Len(t, h.Since(24*time.Hour), 3)
	assert.Len(t, h.All(), 3)
}

func TestHistoryStats(t *testing.T) {
	h := NewHistory(nil, zaptest.NewLogger(t))
	assert.Zero(t, h.Stats().SuccessRate, "empty history reports zero rate")

	now := time.Now()
	h.Append(context.Background(), executionAt("e1", now, true))
	h.Append(context.Background(), executionAt("e2", now, false))

	stats := h.Stats()
	assert.Equal(t, 2, stats.TotalActions)
	assert.Equal(t, 1, stats.SuccessfulActions)
	assert.InDelta(t, 50.0, stats.SuccessRate, 1e-9)
}

func TestHistoryConcurrentAppends(t *testing.T) {
	h := NewHistory(nil, zaptest.NewLogger(t))
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h.Append(context.Background(), executionAt(fmt.Sprintf("e%d", n), now, n%2 == 0))
		}(i)
	}
	wg.Wait()

	stats := h.Stats()
	assert.Equal(t, 50, stats.TotalActions)
	assert.Equal(t, 25, stats.SuccessfulActions)

	seen := make(map[string]struct{})
	for _, record := range h.All() {
		seen[record.ID] = struct{}{}
	}
	assert.Len(t, seen, 50, "no record lost or duplicated")
}

type flakyStore struct {
	saved int
	fail  bool
}

func (s *flakyStore) SaveExecution(_ context.Context, _ *model.ActionExecutionRecord) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.saved++
	return nil
}

func TestHistoryPersistsToStore(t *testing.T) {
	store := &flakyStore{}
	h := NewHistory(store, zaptest.NewLogger(t))

	h.Append(context.Background(), executionAt("e1", time.Now(), true))
	assert.Equal(t, 1, store.saved)

	// A failing store must not lose the in-memory record.
	store.fail = true
	h.Append(context.Background(), executionAt("e2", time.Now(), true))
	assert.Len(t, h.All(), 2)
}

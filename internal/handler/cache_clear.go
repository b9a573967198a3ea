package handler

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Flusher clears cached entries for a scope. An empty scope means the
// whole cache; the returned count is the number of entries removed, or
// -1 when the backend cannot count them.
type Flusher interface {
	Flush(ctx context.Context, scope string) (int64, error)
}

// CacheClearHandler remediates memory-pressure alerts by flushing a
// cache. The scope comes from the rule's params, falling back to the
// alert's service label, falling back to a full flush.
type CacheClearHandler struct {
	flusher Flusher
	logger  *zap.Logger
}

// NewCacheClearHandler creates a cache clear handler.
func NewCacheClearHandler(flusher Flusher, logger *zap.Logger) *CacheClearHandler {
	return &CacheClearHandler{
		flusher: flusher,
		logger:  logger.Named("cache"),
	}
}

// Kind returns the action kind this handler serves.
func (h *CacheClearHandler) Kind() model.ActionKind {
	return model.ActionCacheClear
}

// Execute flushes the resolved cache scope.
func (h *CacheClearHandler) Execute(ctx context.Context, action model.ActionSpec, alert *model.AlertRecord) (*model.ActionOutcome, error) {
	scope := action.Params["scope"]
	if scope == "" {
		scope = alert.Labels["service"]
	}

	h.logger.Info("clearing cache",
		zap.String("scope", scope),
		zap.String("alert_id", alert.ID))

	removed, err := h.flusher.Flush(ctx, scope)
	if err != nil {
		return &model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("cache flush failed: %v", err),
		}, nil
	}

	message := "cache flushed"
	if scope != "" {
		message = fmt.Sprintf("cache flushed for scope %s", scope)
	}
	return &model.ActionOutcome{
		Success: true,
		Message: message,
		Details: map[string]interface{}{"scope": scope, "entries_removed": removed},
	}, nil
}

// RedisFlusher clears entries from a Redis cache. Scoped flushes
// delete keys under "<scope>:*"; an unscoped flush empties the
// database.
type RedisFlusher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFlusher connects to Redis at the given address.
func NewRedisFlusher(addr, password string, db int, logger *zap.Logger) *RedisFlusher {
	return &RedisFlusher{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		logger: logger.Named("redis"),
	}
}

// Flush removes cached entries. Scoped deletes are counted; a full
// FLUSHDB reports -1.
func (f *RedisFlusher) Flush(ctx context.Context, scope string) (int64, error) {
	if scope == "" {
		if err := f.client.FlushDB(ctx).Err(); err != nil {
			return 0, fmt.Errorf("flushdb: %w", err)
		}
		return -1, nil
	}

	var removed int64
	iter := f.client.Scan(ctx, 0, scope+":*", 0).Iterator()
	for iter.Next(ctx) {
		deleted, err := f.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("del %s: %w", iter.Val(), err)
		}
		removed += deleted
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan %s: %w", scope, err)
	}

	f.logger.Info("redis keys removed",
		zap.String("scope", scope),
		zap.Int64("count", removed))
	return removed, nil
}

// Close releases the Redis connection.
func (f *RedisFlusher) Close() error {
	return f.client.Close()
}

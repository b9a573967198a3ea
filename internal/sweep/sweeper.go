// Package sweep schedules the engine's periodic work: correlation
// passes over the recent-alert buffer and cleanup of aged action
// history.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Default schedules (seconds-granularity cron specs) and retention.
const (
	DefaultCorrelationSpec = "0 */5 * * * *"
	DefaultCleanupSpec     = "0 0 * * * *"
	DefaultRetention       = 7 * 24 * time.Hour
)

// Config defines configuration for the sweeper.
type Config struct {
	CorrelationSpec string        `mapstructure:"correlation_spec"`
	CleanupSpec     string        `mapstructure:"cleanup_spec"`
	Retention       time.Duration `mapstructure:"retention"`
}

// Engine is the slice of the facade the sweeper drives.
type Engine interface {
	CorrelateRecent(ctx context.Context) (*model.CorrelationResult, error)
}

// Cleaner prunes aged records from a durable history backend.
type Cleaner interface {
	DeleteBefore(ctx context.Context, before time.Time) error
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Sweeper runs the periodic jobs on a recover-wrapped cron runner.
type Sweeper struct {
	logger  *zap.Logger
	cron    *cron.Cron
	engine  Engine
	cleaner Cleaner
	cfg     Config
}

// NewSweeper creates a sweeper. cleaner may be nil when no durable
// history backend is configured; the cleanup job is skipped then.
func NewSweeper(cfg Config, engine Engine, cleaner Cleaner, logger *zap.Logger) *Sweeper {
	if cfg.CorrelationSpec == "" {
		cfg.CorrelationSpec = DefaultCorrelationSpec
	}
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = DefaultCleanupSpec
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	cronLogger := &cronLogger{logger: logger.Named("cron")}
	cronOptions := []cron.Option{
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger)),
	}

	return &Sweeper{
		logger:  logger.Named("sweeper"),
		cron:    cron.New(cronOptions...),
		engine:  engine,
		cleaner: cleaner,
		cfg:     cfg,
	}
}

// Start registers the jobs and starts the runner. Invalid cron specs
// are rejected here.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.CorrelationSpec, func() { s.correlate(ctx) }); err != nil {
		return fmt.Errorf("invalid correlation spec %q: %w", s.cfg.CorrelationSpec, err)
	}

	if s.cleaner != nil {
		if _, err := s.cron.AddFunc(s.cfg.CleanupSpec, func() { s.cleanup(ctx) }); err != nil {
			return fmt.Errorf("invalid cleanup spec %q: %w", s.cfg.CleanupSpec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("sweeper started",
		zap.String("correlation_spec", s.cfg.CorrelationSpec),
		zap.String("cleanup_spec", s.cfg.CleanupSpec),
		zap.Duration("retention", s.cfg.Retention))
	return nil
}

// Stop stops the runner and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) correlate(ctx context.Context) {
	result, err := s.engine.CorrelateRecent(ctx)
	if err != nil {
		s.logger.Error("Failed to run correlation sweep", zap.Error(err))
		return
	}
	s.logger.Info("correlation sweep complete",
		zap.Int("groups", len(result.Groups)),
		zap.Int("unique", len(result.Unique)),
		zap.Int("suppressed", len(result.Suppressed)))
}

func (s *Sweeper) cleanup(ctx context.Context) {
	before := time.Now().Add(-s.cfg.Retention)
	if err := s.cleaner.DeleteBefore(ctx, before); err != nil {
		s.logger.Error("Failed to clean up action history", zap.Error(err))
		return
	}
	s.logger.Info("history cleanup complete", zap.Time("before", before))
}

// Package source provides the reference anomaly source: a sampler that
// watches host cpu, memory, and load and emits scored anomaly records
// when a sample crosses its soft limit. Detectors with real models plug
// into the engine the same way, through the converter and sink
// interfaces.
package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Default soft limits and sampling interval.
const (
	DefaultInterval    = 30 * time.Second
	DefaultCPULimit    = 80.0
	DefaultMemoryLimit = 85.0
	DefaultLoadLimit   = 4.0
)

// Config defines configuration for the system source.
type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	CPULimit    float64       `mapstructure:"cpu_limit"`
	MemoryLimit float64       `mapstructure:"memory_limit"`
	LoadLimit   float64       `mapstructure:"load_limit"`
}

// Sample is one host measurement.
type Sample struct {
	CPUPercent    float64
	MemoryPercent float64
	Load1         float64
}

// Prober samples the host. HostProber reads gopsutil; tests inject
// fixed samples.
type Prober interface {
	Probe(ctx context.Context) (Sample, error)
}

// Converter turns anomaly records into alerts. The orchestration
// facade implements it.
type Converter interface {
	AlertsFromAnomalies(anomalies []model.AnomalyRecord) []model.AlertRecord
}

// Sink receives converted alerts, typically the bus publisher.
type Sink interface {
	PublishAlert(ctx context.Context, alert model.AlertRecord) error
}

// HostProber samples the local host via gopsutil.
type HostProber struct{}

// NewHostProber creates the gopsutil-backed prober.
func NewHostProber() *HostProber { return &HostProber{} }

// Probe implements Prober.
func (p *HostProber) Probe(ctx context.Context) (Sample, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get memory usage: %w", err)
	}

	loadAvg, err := load.AvgWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get load average: %w", err)
	}

	return Sample{
		CPUPercent:    cpuPercent[0],
		MemoryPercent: memInfo.UsedPercent,
		Load1:         loadAvg.Load1,
	}, nil
}

// SystemSource samples the host on an interval and feeds breaches into
// the engine as alerts.
type SystemSource struct {
	logger    *zap.Logger
	cfg       Config
	prober    Prober
	converter Converter
	sink      Sink
	hostname  string
	stop      chan struct{}
}

// NewSystemSource creates a system source. Zero config values fall
// back to the package defaults.
func NewSystemSource(cfg Config, prober Prober, converter Converter, sink Sink, logger *zap.Logger) *SystemSource {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CPULimit <= 0 {
		cfg.CPULimit = DefaultCPULimit
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	if cfg.LoadLimit <= 0 {
		cfg.LoadLimit = DefaultLoadLimit
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &SystemSource{
		logger:    logger.Named("system-source"),
		cfg:       cfg,
		prober:    prober,
		converter: converter,
		sink:      sink,
		hostname:  hostname,
		stop:      make(chan struct{}),
	}
}

// Collect samples the host once and returns an anomaly record for each
// metric beyond its soft limit, scored by normalized overshoot.
func (s *SystemSource) Collect(ctx context.Context) ([]model.AnomalyRecord, error) {
	sample, err := s.prober.Probe(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	labels := map[string]string{"host": s.hostname, "service": "system"}

	var anomalies []model.AnomalyRecord
	add := func(metric string, value, limit, max float64) {
		score := overshootScore(value, limit, max)
		if score <= 0 {
			return
		}
		anomalies = append(anomalies, model.AnomalyRecord{
			MetricName:    metric,
			Score:         score,
			ObservedValue: value,
			Timestamp:     now,
			Labels:        labels,
		})
	}

	add("cpu_usage", sample.CPUPercent, s.cfg.CPULimit, 100)
	add("memory_usage", sample.MemoryPercent, s.cfg.MemoryLimit, 100)
	// Load has no natural ceiling; saturate the score at twice the limit.
	add("load_average", sample.Load1, s.cfg.LoadLimit, 2*s.cfg.LoadLimit)

	if len(anomalies) > 0 {
		s.logger.Debug("host limits exceeded",
			zap.Int("anomalies", len(anomalies)),
			zap.Float64("cpu", sample.CPUPercent),
			zap.Float64("memory", sample.MemoryPercent),
			zap.Float64("load1", sample.Load1))
	}
	return anomalies, nil
}

// Run samples on the configured interval until the context is
// cancelled or Stop is called, converting breaches into alerts and
// pushing them to the sink.
func (s *SystemSource) Run(ctx context.Context) {
	s.logger.Info("system source started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Float64("cpu_limit", s.cfg.CPULimit),
		zap.Float64("memory_limit", s.cfg.MemoryLimit),
		zap.Float64("load_limit", s.cfg.LoadLimit))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

// Stop terminates the Run loop.
func (s *SystemSource) Stop() {
	close(s.stop)
}

func (s *SystemSource) sampleOnce(ctx context.Context) {
	anomalies, err := s.Collect(ctx)
	if err != nil {
		s.logger.Error("Failed to collect system metrics", zap.Error(err))
		return
	}
	if len(anomalies) == 0 {
		return
	}

	for _, alert := range s.converter.AlertsFromAnomalies(anomalies) {
		if err := s.sink.PublishAlert(ctx, alert); err != nil {
			s.logger.Error("Failed to publish alert",
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}
}

// overshootScore maps value into (0, 1] by how far past the limit it
// lands, relative to the distance from limit to max.
func overshootScore(value, limit, max float64) float64 {
	if value <= limit {
		return 0
	}
	span := max - limit
	if span <= 0 {
		return 1
	}
	score := (value - limit) / span
	if score > 1 {
		score = 1
	}
	return score
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RajaMuhammadAwais/AiOps/internal/config"
	"github.com/RajaMuhammadAwais/AiOps/internal/correlate"
	"github.com/RajaMuhammadAwais/AiOps/internal/handler"
	"github.com/RajaMuhammadAwais/AiOps/internal/heal"
	"github.com/RajaMuhammadAwais/AiOps/internal/ingest"
	"github.com/RajaMuhammadAwais/AiOps/internal/metrics"
	"github.com/RajaMuhammadAwais/AiOps/internal/orchestrator"
	"github.com/RajaMuhammadAwais/AiOps/internal/source"
	"github.com/RajaMuhammadAwais/AiOps/internal/storage"
	"github.com/RajaMuhammadAwais/AiOps/internal/sweep"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting alert correlation engine",
		zap.String("app", cfg.App.Name),
		zap.String("nats_url", cfg.NATS.URL))

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5 * 1024 * 1024), // 5MB
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error",
				zap.String("subject", sub.Subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	m := metrics.New()

	// Durable action history is optional; the in-memory log always runs.
	var cleaner sweep.Cleaner
	var store heal.Store
	if cfg.Storage.Enabled {
		sqlStore, err := storage.NewSQLiteActionHistory(logger, cfg.Storage.Path)
		if err != nil {
			logger.Fatal("Failed to open action history storage", zap.Error(err))
		}
		defer sqlStore.Close()
		store = sqlStore
		cleaner = sqlStore
	}
	history := heal.NewHistory(store, logger)

	rules := heal.DefaultRules()
	if cfg.Rules.Path != "" {
		rules, err = heal.LoadRulePack(cfg.Rules.Path)
		if err != nil {
			logger.Fatal("Failed to load rule pack",
				zap.String("path", cfg.Rules.Path),
				zap.Error(err))
		}
	}

	engine := heal.NewEngine(m, logger)
	if err := engine.AddRules(rules...); err != nil {
		logger.Fatal("Failed to register self-healing rules", zap.Error(err))
	}

	dispatcher := heal.NewDispatcher(history, m, logger)
	registerHandlers(dispatcher, cfg.Actions, logger)

	correlator := correlate.New(cfg.Correlate, m, logger)
	orch := orchestrator.New(cfg.Orchestrator, correlator, engine, dispatcher, m, logger)

	consumer, err := ingest.NewConsumer(js, orch, cfg.Ingest, logger)
	if err != nil {
		logger.Fatal("Failed to create alert consumer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("Failed to start alert consumer", zap.Error(err))
	}

	sweeper := sweep.NewSweeper(cfg.Sweep, orch, cleaner, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("Failed to start sweeper", zap.Error(err))
	}

	var sys *source.SystemSource
	if cfg.Source.Enabled {
		publisher := ingest.NewPublisher(js, logger)
		sys = source.NewSystemSource(cfg.Source, source.NewHostProber(), orch, publisher, logger)
		go sys.Run(ctx)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Metrics.Address,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server exited", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	// Stop intake first so in-flight alerts drain before the scheduled
	// work and the metrics endpoint go away.
	consumer.Stop()
	sweeper.Stop()
	if sys != nil {
		sys.Stop()
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server shutdown", zap.Error(err))
		}
		cancel()
	}

	logger.Info("Engine shutting down gracefully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.JSON {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// registerHandlers wires the configured remediation backends onto the
// dispatcher. A backend that fails to initialize is skipped with a
// warning so one bad integration does not take the engine down.
func registerHandlers(d *heal.Dispatcher, cfg config.ActionsConfig, logger *zap.Logger) {
	notify := handler.NewNotifyTeamHandler(logger)
	if cfg.Webhook.URL != "" {
		notify.RegisterChannel(cfg.Webhook.Channel,
			handler.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout, logger))
	}
	if cfg.Email.Host != "" {
		notify.RegisterChannel(cfg.Email.Channel,
			handler.NewEmailNotifier(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username,
				cfg.Email.Password, cfg.Email.From, cfg.Email.To, logger))
	}
	if err := d.RegisterHandler(notify); err != nil {
		logger.Warn("Failed to register notify handler", zap.Error(err))
	}

	if cfg.Docker.Enabled {
		restarter, err := handler.NewDockerRestarter(cfg.Docker.StopTimeout, logger)
		if err != nil {
			logger.Warn("Docker restart backend unavailable", zap.Error(err))
		} else if err := d.RegisterHandler(handler.NewServiceRestartHandler(restarter, logger)); err != nil {
			logger.Warn("Failed to register restart handler", zap.Error(err))
		}

		scaler, err := handler.NewSwarmScaler(logger)
		if err != nil {
			logger.Warn("Docker scale backend unavailable", zap.Error(err))
		} else if err := d.RegisterHandler(handler.NewScaleHandler(scaler, logger)); err != nil {
			logger.Warn("Failed to register scale handler", zap.Error(err))
		}
	}

	if cfg.Redis.Enabled {
		flusher := handler.NewRedisFlusher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err := d.RegisterHandler(handler.NewCacheClearHandler(flusher, logger)); err != nil {
			logger.Warn("Failed to register cache clear handler", zap.Error(err))
		}
	}

	if cfg.Script.Enabled {
		if err := d.RegisterHandler(handler.NewScriptHandler(cfg.Script.Timeout, logger)); err != nil {
			logger.Warn("Failed to register script handler", zap.Error(err))
		}
	}
}

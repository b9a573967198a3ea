// Package config loads engine configuration from YAML with environment
// overrides. Component packages default their own zero values, so a
// missing section simply means "use the built-in defaults".
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RajaMuhammadAwais/AiOps/internal/correlate"
	"github.com/RajaMuhammadAwais/AiOps/internal/ingest"
	"github.com/RajaMuhammadAwais/AiOps/internal/orchestrator"
	"github.com/RajaMuhammadAwais/AiOps/internal/source"
	"github.com/RajaMuhammadAwais/AiOps/internal/sweep"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// AIOPS_NATS_URL overrides nats.url.
const EnvPrefix = "AIOPS"

// Config is the root of the engine configuration tree.
type Config struct {
	App          AppConfig           `mapstructure:"app"`
	Log          LogConfig           `mapstructure:"log"`
	NATS         NATSConfig          `mapstructure:"nats"`
	Metrics      MetricsConfig       `mapstructure:"metrics"`
	Storage      StorageConfig       `mapstructure:"storage"`
	Rules        RulesConfig         `mapstructure:"rules"`
	Actions      ActionsConfig       `mapstructure:"actions"`
	Correlate    correlate.Config    `mapstructure:"correlate"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator"`
	Ingest       ingest.Config       `mapstructure:"ingest"`
	Source       source.Config       `mapstructure:"source"`
	Sweep        sweep.Config        `mapstructure:"sweep"`
}

// AppConfig names the instance on the bus.
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// NATSConfig controls the connection to the alert bus.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// StorageConfig controls the durable action history backend.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RulesConfig points at a self-healing rule pack. An empty path means
// the built-in default rules.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// ActionsConfig groups the remediation backends. Disabled backends are
// simply not registered; rules selecting their action kinds fail with
// a handler-not-found execution record.
type ActionsConfig struct {
	Docker  DockerConfig  `mapstructure:"docker"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Email   EmailConfig   `mapstructure:"email"`
	Script  ScriptConfig  `mapstructure:"script"`
}

// DockerConfig configures the container restart and scale backends.
type DockerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// RedisConfig configures the cache flush backend.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WebhookConfig configures an HTTP notification channel.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Channel string        `mapstructure:"channel"`
}

// EmailConfig configures an SMTP notification channel.
type EmailConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Channel  string   `mapstructure:"channel"`
}

// ScriptConfig configures the escape-hatch script runner.
type ScriptConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from the given file, or from
// ./configs/config.yaml and /etc/aiops/config.yaml when path is empty.
// A missing file is only an error when a path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/aiops")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "aiops-engine")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9131")

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "aiops_actions.db")

	v.SetDefault("actions.docker.enabled", false)
	v.SetDefault("actions.docker.stop_timeout", 10*time.Second)
	v.SetDefault("actions.redis.enabled", false)
	v.SetDefault("actions.redis.addr", "127.0.0.1:6379")
	v.SetDefault("actions.webhook.channel", "webhook")
	v.SetDefault("actions.webhook.timeout", 10*time.Second)
	v.SetDefault("actions.email.channel", "email")
	v.SetDefault("actions.email.port", 587)
	v.SetDefault("actions.script.enabled", false)
	v.SetDefault("actions.script.timeout", 30*time.Second)
}

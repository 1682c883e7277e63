package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the deployment-level settings for the drift-monitor worker.
// The algorithm parameters themselves arrive per experiment; everything here
// is environment plumbing.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Storage   StorageConfig   `yaml:"storage"`
	Runner    RunnerConfig    `yaml:"runner"`
	Detector  DetectorConfig  `yaml:"detector"`
	Explainer ExplainerConfig `yaml:"explainer"`
	Markers   MarkerConfig    `yaml:"markers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BrokerConfig controls the NATS connection, the inbound experiments queue,
// and the outbound status topic.
type BrokerConfig struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientName     string        `yaml:"clientName"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	ReconnectWait  time.Duration `yaml:"reconnectWait"`
	MaxReconnects  int           `yaml:"maxReconnects"`

	ExperimentsStream  string        `yaml:"experimentsStream"`
	ExperimentsSubject string        `yaml:"experimentsSubject"`
	ConsumerName       string        `yaml:"consumerName"`
	AckWait            time.Duration `yaml:"ackWait"`
	MaxDeliver         int           `yaml:"maxDeliver"`
	FetchTimeout       time.Duration `yaml:"fetchTimeout"`

	StatusTopic string `yaml:"statusTopic"`
}

// StorageConfig locates the durable result store.
type StorageConfig struct {
	BasePath string `yaml:"basePath"`
}

// RunnerConfig controls run concurrency and the optional external timeout.
type RunnerConfig struct {
	Workers    int           `yaml:"workers"`
	RunTimeout time.Duration `yaml:"runTimeout"`
}

// DetectorConfig holds the deployment-wide statistical settings.
type DetectorConfig struct {
	Significance float64 `yaml:"significance"`
}

// ExplainerConfig holds the cause-explanation thresholds and the labels of
// the synthetic boundary events excluded from the statistics.
type ExplainerConfig struct {
	FirstActivity     string  `yaml:"firstActivity"`
	LastActivity      string  `yaml:"lastActivity"`
	CalendarThreshold float64 `yaml:"calendarThreshold"`
}

// MarkerConfig controls the Valkey-backed completion marker store.
type MarkerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TTL          time.Duration `yaml:"ttl"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DRIFTMON_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			URL:                "nats://localhost:4222",
			ClientName:         "drift-monitor",
			ConnectTimeout:     10 * time.Second,
			ReconnectWait:      2 * time.Second,
			MaxReconnects:      60,
			ExperimentsStream:  "EXPERIMENTS",
			ExperimentsSubject: "experiments.submit",
			ConsumerName:       "drift-monitor",
			AckWait:            30 * time.Minute,
			MaxDeliver:         3,
			FetchTimeout:       5 * time.Second,
			StatusTopic:        "status",
		},
		Storage: StorageConfig{BasePath: "./data"},
		Runner: RunnerConfig{
			Workers: 4,
		},
		Detector: DetectorConfig{Significance: 0.05},
		Explainer: ExplainerConfig{
			FirstActivity:     "__SYNTHETIC_START_EVENT__",
			LastActivity:      "__SYNTHETIC_END_EVENT__",
			CalendarThreshold: 0.1,
		},
		Markers: MarkerConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			TTL:          7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Metrics: MetricsConfig{Address: ":2112"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRIFTMON_NATS_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("DRIFTMON_NATS_USER"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("DRIFTMON_NATS_PASS"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv("DRIFTMON_EXPERIMENTS_STREAM"); v != "" {
		cfg.Broker.ExperimentsStream = v
	}
	if v := os.Getenv("DRIFTMON_EXPERIMENTS_SUBJECT"); v != "" {
		cfg.Broker.ExperimentsSubject = v
	}
	if v := os.Getenv("DRIFTMON_CONSUMER_NAME"); v != "" {
		cfg.Broker.ConsumerName = v
	}
	if v := os.Getenv("DRIFTMON_STATUS_TOPIC"); v != "" {
		cfg.Broker.StatusTopic = v
	}
	if v := os.Getenv("DRIFTMON_BASE_DATA_PATH"); v != "" {
		cfg.Storage.BasePath = v
	}
	if v := os.Getenv("DRIFTMON_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Runner.Workers = n
		}
	}
	if v := os.Getenv("DRIFTMON_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Runner.RunTimeout = d
		}
	}
	if v := os.Getenv("DRIFTMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DRIFTMON_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DRIFTMON_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("DRIFTMON_MARKERS_ENABLED"); v != "" {
		cfg.Markers.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("DRIFTMON_MARKERS_ADDR"); v != "" {
		cfg.Markers.Addr = v
	}
	if v := os.Getenv("DRIFTMON_MARKERS_USERNAME"); v != "" {
		cfg.Markers.Username = v
	}
	if v := os.Getenv("DRIFTMON_MARKERS_PASSWORD"); v != "" {
		cfg.Markers.Password = v
	}
	if v := os.Getenv("DRIFTMON_MARKERS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Markers.TTL = d
		}
	}
}

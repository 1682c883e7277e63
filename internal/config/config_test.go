package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DRIFTMON_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.Broker.URL != "nats://localhost:4222" {
		t.Fatalf("broker url = %q", cfg.Broker.URL)
	}
	if cfg.Broker.ExperimentsStream != "EXPERIMENTS" {
		t.Fatalf("stream = %q", cfg.Broker.ExperimentsStream)
	}
	if cfg.Runner.Workers != 4 {
		t.Fatalf("workers = %d", cfg.Runner.Workers)
	}
	if cfg.Detector.Significance != 0.05 {
		t.Fatalf("significance = %f", cfg.Detector.Significance)
	}
	if cfg.Markers.TTL != 7*24*time.Hour {
		t.Fatalf("marker ttl = %s", cfg.Markers.TTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
broker:
  url: nats://broker:4222
  statusTopic: driftmon.status
runner:
  workers: 8
storage:
  basePath: /var/lib/driftmon
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Broker.URL != "nats://broker:4222" {
		t.Fatalf("broker url = %q", cfg.Broker.URL)
	}
	if cfg.Broker.StatusTopic != "driftmon.status" {
		t.Fatalf("status topic = %q", cfg.Broker.StatusTopic)
	}
	if cfg.Runner.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Runner.Workers)
	}
	if cfg.Storage.BasePath != "/var/lib/driftmon" {
		t.Fatalf("base path = %q", cfg.Storage.BasePath)
	}
	// Untouched sections keep their defaults.
	if cfg.Broker.ExperimentsSubject != "experiments.submit" {
		t.Fatalf("subject = %q", cfg.Broker.ExperimentsSubject)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DRIFTMON_CONFIG", "")
	t.Setenv("DRIFTMON_NATS_URL", "nats://override:4222")
	t.Setenv("DRIFTMON_WORKERS", "2")
	t.Setenv("DRIFTMON_LOG_FORMAT", "json")
	t.Setenv("DRIFTMON_MARKERS_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Broker.URL != "nats://override:4222" {
		t.Fatalf("broker url = %q", cfg.Broker.URL)
	}
	if cfg.Runner.Workers != 2 {
		t.Fatalf("workers = %d", cfg.Runner.Workers)
	}
	if !cfg.Logging.JSON {
		t.Fatal("expected JSON logging")
	}
	if !cfg.Markers.Enabled {
		t.Fatal("expected markers enabled")
	}
}

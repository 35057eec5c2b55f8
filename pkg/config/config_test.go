package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("WATCH_NAME", "kitchen-watch")

	path := writeFile(t, dir, "pairtimer.yaml", `
device:
  id: watch-1
  role: companion
  name: ${WATCH_NAME}
  peer_id: phone-1
store:
  driver: memory
nats:
  url: nats://10.0.0.2:4222
  heartbeat_interval: 2s
  peer_timeout: 7s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Role != RoleCompanion {
		t.Errorf("Role = %q, want %q", cfg.Device.Role, RoleCompanion)
	}
	if cfg.Device.Name != "kitchen-watch" {
		t.Errorf("Name = %q, want expanded env value", cfg.Device.Name)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Driver = %q, want %q", cfg.Store.Driver, DriverMemory)
	}
	if cfg.NATS.HeartbeatInterval != 2*time.Second || cfg.NATS.PeerTimeout != 7*time.Second {
		t.Errorf("presence = %v/%v, want 2s/7s", cfg.NATS.HeartbeatInterval, cfg.NATS.PeerTimeout)
	}
	if cfg.NATS.Bucket == "" || cfg.NATS.SubjectPrefix == "" {
		t.Error("NATS defaults not applied")
	}
	if lvl, _ := cfg.Level(); lvl != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", lvl)
	}
	if got := cfg.PresenceConfig().DetectionDelay(); got != 9*time.Second {
		t.Errorf("DetectionDelay() = %v, want 9s", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "pairtimer.yaml", "device:\n  role: primary\n")

	t.Setenv("PAIRTIMER_ROLE", "companion")
	t.Setenv("PAIRTIMER_STORE_DRIVER", "memory")
	t.Setenv("PAIRTIMER_PEER_TIMEOUT", "30s")
	t.Setenv("PAIRTIMER_DISCOVERY", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Role != RoleCompanion {
		t.Errorf("Role = %q, want env override", cfg.Device.Role)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Driver = %q, want env override", cfg.Store.Driver)
	}
	if cfg.NATS.PeerTimeout != 30*time.Second {
		t.Errorf("PeerTimeout = %v, want 30s", cfg.NATS.PeerTimeout)
	}
	if !cfg.Discovery.Enabled {
		t.Error("Discovery.Enabled = false, want true")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "PAIRTIMER_DEVICE_NAME=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("PAIRTIMER_DEVICE_NAME") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Name != "from-dotenv" {
		t.Errorf("Name = %q, want value from .env", cfg.Device.Name)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("BadYAML", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", "device: [\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})

	t.Run("BadDuration", func(t *testing.T) {
		t.Setenv("PAIRTIMER_HEARTBEAT_INTERVAL", "often")
		_, err := Load("")
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("Load() error = %v, want ErrInvalid", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown role", func(c *Config) { c.Device.Role = "tablet" }},
		{"peer equals self", func(c *Config) { c.Device.ID = "a"; c.Device.PeerID = "a" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without dir", func(c *Config) { c.Store.DataDir = "" }},
		{"no url without discovery", func(c *Config) { c.NATS.URL = "" }},
		{"zero heartbeat", func(c *Config) { c.NATS.HeartbeatInterval = 0 }},
		{"timeout below heartbeat", func(c *Config) { c.NATS.PeerTimeout = c.NATS.HeartbeatInterval }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"broker on companion", func(c *Config) { c.Broker.Embedded = true; c.Device.Role = RoleCompanion }},
		{"broker port", func(c *Config) { c.Broker.Embedded = true; c.Broker.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	t.Run("discovery replaces url", func(t *testing.T) {
		cfg := Default()
		cfg.NATS.URL = ""
		cfg.Discovery.Enabled = true
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestBrokerConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PAIRTIMER_BROKER", "1")
	t.Setenv("PAIRTIMER_BROKER_PORT", "14222")
	t.Setenv("PAIRTIMER_NATS_URL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Broker.Embedded {
		t.Error("Broker.Embedded = false, want true")
	}
	if cfg.Broker.Port != 14222 {
		t.Errorf("Broker.Port = %d, want 14222", cfg.Broker.Port)
	}
	if cfg.Broker.Host != "0.0.0.0" {
		t.Errorf("Broker.Host = %q, want default", cfg.Broker.Host)
	}
	if got := cfg.BrokerStoreDir(); got != filepath.Join(cfg.Store.DataDir, "jetstream") {
		t.Errorf("BrokerStoreDir() = %q", got)
	}

	t.Setenv("PAIRTIMER_BROKER_PORT", "many")
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestAlertTitle(t *testing.T) {
	cfg := Default()
	if got := cfg.AlertTitle("Tea"); got != "Tea" {
		t.Errorf("AlertTitle() = %q, want %q", got, "Tea")
	}
	cfg.Notify.TitleFormat = "{name} is ready"
	if got := cfg.AlertTitle("Tea"); got != "Tea is ready" {
		t.Errorf("AlertTitle() = %q, want %q", got, "Tea is ready")
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.Store.DataDir = "/var/lib/pairtimer"
	if got := cfg.StatePath(); got != "/var/lib/pairtimer/device.json" {
		t.Errorf("StatePath() = %q", got)
	}
	if got := cfg.DatabasePath(); got != "/var/lib/pairtimer/pairtimer.db" {
		t.Errorf("DatabasePath() = %q", got)
	}
}

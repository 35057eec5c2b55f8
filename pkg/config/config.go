// Package config loads the device configuration from a YAML file, an
// optional .env file and PAIRTIMER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pairtimer/pairtimer-go/pkg/transport"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Device roles.
const (
	RolePrimary   = "primary"
	RoleCompanion = "companion"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAIRTIMER_"

// DefaultTitleFormat is the alert title; {name} is replaced by the timer
// name.
const DefaultTitleFormat = "{name}"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete device configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Store     StoreConfig     `yaml:"store"`
	NATS      NATSConfig      `yaml:"nats"`
	Broker    BrokerConfig    `yaml:"broker"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DeviceConfig identifies this device and its peer. An empty ID is filled
// from the persisted device state.
type DeviceConfig struct {
	ID     string `yaml:"id"`
	Role   string `yaml:"role"`
	Name   string `yaml:"name"`
	PeerID string `yaml:"peer_id"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DataDir string `yaml:"data_dir"`
}

// NATSConfig configures the transport.
type NATSConfig struct {
	URL               string        `yaml:"url"`
	SubjectPrefix     string        `yaml:"subject_prefix"`
	Bucket            string        `yaml:"bucket"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	PeerTimeout       time.Duration `yaml:"peer_timeout"`
}

// BrokerConfig configures the embedded NATS server. Only the primary hosts
// it.
type BrokerConfig struct {
	Embedded bool   `yaml:"embedded"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	StoreDir string `yaml:"store_dir"`
}

// DiscoveryConfig configures mDNS peer discovery.
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig configures operational and protocol logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	ProtocolLog string `yaml:"protocol_log"`
}

// NotifyConfig configures the "timer finished" alert.
type NotifyConfig struct {
	TitleFormat string `yaml:"title_format"`
	Body        string `yaml:"body"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{Role: RolePrimary},
		Store:  StoreConfig{Driver: DriverSQLite, DataDir: "./pairtimer-data"},
		NATS: NATSConfig{
			URL:               "nats://127.0.0.1:4222",
			SubjectPrefix:     transport.DefaultSubjectPrefix,
			Bucket:            transport.DefaultBucket,
			HeartbeatInterval: transport.DefaultHeartbeatInterval,
			PeerTimeout:       transport.DefaultPeerTimeout,
		},
		Broker: BrokerConfig{Host: "0.0.0.0", Port: 4222},
		Log:    LogConfig{Level: "info"},
		Notify: NotifyConfig{TitleFormat: DefaultTitleFormat, Body: "Timer finished"},
	}
}

// Load reads the YAML file at path on top of Default. A .env file next to
// the working directory is loaded first if present; ${VAR} references in
// the YAML are expanded; PAIRTIMER_* variables override the file. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills fields the YAML set to their zero value.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Device.Role == "" {
		c.Device.Role = def.Device.Role
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = def.NATS.SubjectPrefix
	}
	if c.NATS.Bucket == "" {
		c.NATS.Bucket = def.NATS.Bucket
	}
	if c.NATS.HeartbeatInterval == 0 {
		c.NATS.HeartbeatInterval = def.NATS.HeartbeatInterval
	}
	if c.NATS.PeerTimeout == 0 {
		c.NATS.PeerTimeout = def.NATS.PeerTimeout
	}
	if c.Broker.Host == "" {
		c.Broker.Host = def.Broker.Host
	}
	if c.Broker.Port == 0 {
		c.Broker.Port = def.Broker.Port
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Notify.TitleFormat == "" {
		c.Notify.TitleFormat = def.Notify.TitleFormat
	}
	if c.Notify.Body == "" {
		c.Notify.Body = def.Notify.Body
	}
}

// applyEnv applies PAIRTIMER_* overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DEVICE_ID":           &c.Device.ID,
		"ROLE":                &c.Device.Role,
		"DEVICE_NAME":         &c.Device.Name,
		"PEER_ID":             &c.Device.PeerID,
		"STORE_DRIVER":        &c.Store.Driver,
		"DATA_DIR":            &c.Store.DataDir,
		"NATS_URL":            &c.NATS.URL,
		"NATS_SUBJECT_PREFIX": &c.NATS.SubjectPrefix,
		"NATS_BUCKET":         &c.NATS.Bucket,
		"BROKER_HOST":         &c.Broker.Host,
		"BROKER_STORE_DIR":    &c.Broker.StoreDir,
		"DISCOVERY_INTERFACE": &c.Discovery.Interface,
		"METRICS_ADDR":        &c.Metrics.ListenAddr,
		"LOG_LEVEL":           &c.Log.Level,
		"PROTOCOL_LOG":        &c.Log.ProtocolLog,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durs := map[string]*time.Duration{
		"HEARTBEAT_INTERVAL": &c.NATS.HeartbeatInterval,
		"PEER_TIMEOUT":       &c.NATS.PeerTimeout,
	}
	for name, dst := range durs {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalid, EnvPrefix, name, err)
		}
		*dst = d
	}

	bools := map[string]*bool{
		"DISCOVERY": &c.Discovery.Enabled,
		"BROKER":    &c.Broker.Embedded,
	}
	for name, dst := range bools {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalid, EnvPrefix, name, err)
		}
		*dst = b
	}

	if v, ok := lookup(EnvPrefix + "BROKER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sBROKER_PORT: %v", ErrInvalid, EnvPrefix, err)
		}
		c.Broker.Port = port
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	switch c.Device.Role {
	case RolePrimary, RoleCompanion:
	default:
		errs = append(errs, fmt.Errorf("device.role %q must be %q or %q", c.Device.Role, RolePrimary, RoleCompanion))
	}
	if c.Device.ID != "" && c.Device.ID == c.Device.PeerID {
		errs = append(errs, errors.New("device.peer_id must differ from device.id"))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DataDir == "" {
			errs = append(errs, errors.New("store.data_dir is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be %q or %q", c.Store.Driver, DriverSQLite, DriverMemory))
	}
	if c.Broker.Embedded {
		if c.Device.Role != RolePrimary {
			errs = append(errs, errors.New("broker.embedded is only supported on the primary"))
		}
		if c.Broker.Port < 1 || c.Broker.Port > 65535 {
			errs = append(errs, fmt.Errorf("broker.port %d out of range", c.Broker.Port))
		}
	}
	if c.NATS.URL == "" && !c.Discovery.Enabled && !c.Broker.Embedded {
		errs = append(errs, errors.New("nats.url is required unless discovery is enabled"))
	}
	if c.NATS.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("nats.heartbeat_interval must be positive"))
	}
	if c.NATS.PeerTimeout <= c.NATS.HeartbeatInterval {
		errs = append(errs, errors.New("nats.peer_timeout must exceed nats.heartbeat_interval"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Level parses Log.Level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return l, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return l, nil
}

// PresenceConfig returns the transport presence settings.
func (c *Config) PresenceConfig() transport.PresenceConfig {
	return transport.PresenceConfig{
		Interval: c.NATS.HeartbeatInterval,
		Timeout:  c.NATS.PeerTimeout,
	}
}

// StatePath is the device identity file.
func (c *Config) StatePath() string {
	return filepath.Join(c.Store.DataDir, "device.json")
}

// BrokerStoreDir is the JetStream directory of the embedded broker.
func (c *Config) BrokerStoreDir() string {
	if c.Broker.StoreDir != "" {
		return c.Broker.StoreDir
	}
	return filepath.Join(c.Store.DataDir, "jetstream")
}

// DatabasePath is the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Store.DataDir, "pairtimer.db")
}

// AlertTitle renders the alert title for a timer name.
func (c *Config) AlertTitle(name string) string {
	return strings.ReplaceAll(c.Notify.TitleFormat, "{name}", name)
}

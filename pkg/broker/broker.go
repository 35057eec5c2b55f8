// Package broker runs an embedded NATS server with JetStream so the primary
// device can host the link without external infrastructure.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Defaults.
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 4222
	DefaultReadyTimeout = 5 * time.Second

	// RandomPort asks the server to pick a free port.
	RandomPort = server.RANDOM_PORT
)

// ErrNotReady is returned when the server does not accept connections in
// time.
var ErrNotReady = errors.New("broker not ready for connections")

// Config configures the embedded server.
type Config struct {
	// Name identifies the server in logs and JetStream metadata.
	Name string

	Host string
	Port int

	// StoreDir holds the JetStream data. Required.
	StoreDir string

	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Broker is a running embedded server.
type Broker struct {
	ns     *server.Server
	host   string
	logger *slog.Logger
}

// Start starts the server and waits until it accepts connections.
func Start(cfg Config) (*Broker, error) {
	if cfg.StoreDir == "" {
		return nil, errors.New("broker store dir is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "pairtimer"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: cfg.Name,
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}
	debug := logger.Enabled(context.Background(), slog.LevelDebug)
	ns.SetLogger(&serverLogger{logger: logger.With(slog.String("component", "broker"))}, debug, false)

	go ns.Start()
	if !ns.ReadyForConnections(cfg.ReadyTimeout) {
		ns.Shutdown()
		return nil, ErrNotReady
	}

	b := &Broker{ns: ns, host: cfg.Host, logger: logger}
	logger.Info("embedded NATS server ready",
		slog.String("url", b.ClientURL()),
		slog.String("store_dir", cfg.StoreDir))
	return b, nil
}

// Port is the port the server listens on.
func (b *Broker) Port() int {
	if addr, ok := b.ns.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ClientURL is the URL local clients dial. A wildcard listen address is
// reached over loopback.
func (b *Broker) ClientURL() string {
	host := b.host
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "nats://" + net.JoinHostPort(host, strconv.Itoa(b.Port()))
}

// ListensOnAll reports whether the server accepts connections on every
// interface.
func (b *Broker) ListensOnAll() bool {
	ip := net.ParseIP(b.host)
	return ip != nil && ip.IsUnspecified()
}

// Shutdown stops the server and waits for it to exit.
func (b *Broker) Shutdown() {
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
	b.logger.Info("embedded NATS server stopped")
}

// serverLogger forwards server log lines to slog.
type serverLogger struct {
	logger *slog.Logger
}

func (l *serverLogger) Noticef(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Tracef(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

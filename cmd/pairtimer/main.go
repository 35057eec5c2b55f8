// Command pairtimer runs one device of a phone/watch timer pair.
//
// The device keeps its timers in a local SQLite database, replicates every
// edit and countdown transition to its peer over NATS and keeps running
// while the peer is away.
//
// Usage:
//
//	pairtimer [flags]
//
// Examples:
//
//	# Run the primary with a config file and the interactive console
//	pairtimer -c pairtimer.yaml
//
//	# Run a companion that finds the primary via mDNS
//	pairtimer --role companion --discovery --data-dir ./watch-data
//
//	# Headless primary hosting its own NATS server, with Prometheus metrics
//	pairtimer --no-interactive --broker --metrics-addr :9464
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/pairtimer/pairtimer-go/pkg/config"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
)

const shutdownTimeout = 10 * time.Second

var version = "dev"

// CLI is the command line.
type CLI struct {
	Config        string           `short:"c" help:"Configuration file path" type:"path"`
	Verbose       bool             `short:"v" help:"Enable debug logging"`
	NoInteractive bool             `help:"Run without the interactive console"`
	Version       kong.VersionFlag `name:"version" help:"Show version and exit"`

	Role        string `help:"Device role: primary or companion" enum:",primary,companion" default:""`
	Name        string `help:"Human-readable device name"`
	PeerID      string `name:"peer-id" help:"Device id of the peer"`
	DataDir     string `name:"data-dir" help:"Directory for the database and device state" type:"path"`
	Store       string `help:"Store driver: sqlite or memory" enum:",sqlite,memory" default:""`
	NATSURL     string `name:"nats-url" help:"NATS server URL"`
	Broker      bool   `help:"Host an embedded NATS server (primary only)"`
	Discovery   bool   `help:"Find the peer via mDNS"`
	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address"`
	ProtocolLog string `name:"protocol-log" help:"Write the protocol trace to this file" type:"path"`
}

// apply overrides cfg with the flags that were given.
func (c *CLI) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Device.Role, c.Role)
	set(&cfg.Device.Name, c.Name)
	set(&cfg.Device.PeerID, c.PeerID)
	set(&cfg.Store.DataDir, c.DataDir)
	set(&cfg.Store.Driver, c.Store)
	set(&cfg.NATS.URL, c.NATSURL)
	set(&cfg.Metrics.ListenAddr, c.MetricsAddr)
	set(&cfg.Log.ProtocolLog, c.ProtocolLog)
	if c.Discovery {
		cfg.Discovery.Enabled = true
	}
	if c.Broker {
		cfg.Broker.Embedded = true
	}
	if c.Verbose {
		cfg.Log.Level = "debug"
	}
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pairtimer"),
		kong.Description("Run one device of a paired timer."),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		kctx.Fatalf("failed to load configuration: %v", err)
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		kctx.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code, err := run(ctx, cfg, !cli.NoInteractive)
	if err != nil {
		slog.Error("pairtimer failed", plog.Err(err))
		code = 1
	}
	cancel()
	os.Exit(code)
}

// newLogger builds the operational logger writing to w.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// run starts the device and blocks until a shutdown completes. The exit
// code comes from the shutdown operations.
func run(ctx context.Context, cfg *config.Config, interactive bool) (int, error) {
	var console *Console
	out := io.Writer(os.Stderr)
	if interactive {
		c, err := NewConsole()
		if err != nil {
			return 1, err
		}
		console = c
		out = c.Stderr()
	}
	logger := newLogger(cfg, out)
	slog.SetDefault(logger)

	dev, err := setup(ctx, cfg, logger)
	if err != nil {
		return 1, err
	}
	if err := dev.svc.Start(ctx); err != nil {
		dev.close()
		return 1, fmt.Errorf("failed to start device service: %w", err)
	}
	logger.Info("device ready",
		plog.Device(dev.svc.DeviceID()),
		slog.String("role", cfg.Device.Role),
		plog.Peer(cfg.Device.PeerID))

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"device": func(context.Context) error {
			logger.Info("shutting down")
			defer dev.close()
			return dev.svc.Stop()
		},
	})

	if console != nil {
		console.Attach(dev.svc)
		go console.Run(ctx, interrupt)
	} else {
		dev.svc.OnEvent(logEvent(logger))
	}

	return <-wait, nil
}

// interrupt asks the process to shut down the same way Ctrl+C does.
func interrupt() {
	p, err := os.FindProcess(os.Getpid())
	if err == nil {
		err = p.Signal(os.Interrupt)
	}
	if err != nil {
		slog.Error("failed to signal shutdown", plog.Err(err))
	}
}

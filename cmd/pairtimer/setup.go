package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pairtimer/pairtimer-go/pkg/broker"
	"github.com/pairtimer/pairtimer-go/pkg/config"
	"github.com/pairtimer/pairtimer-go/pkg/discovery"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/metrics"
	"github.com/pairtimer/pairtimer-go/pkg/persistence"
	"github.com/pairtimer/pairtimer-go/pkg/service"
	"github.com/pairtimer/pairtimer-go/pkg/store"
	"github.com/pairtimer/pairtimer-go/pkg/transport"
)

// device holds everything run needs to tear down besides the service.
type device struct {
	svc        *service.DeviceService
	broker     *broker.Broker
	advertiser *discovery.MDNSAdvertiser
	metricsSrv *http.Server
	traceFile  *plog.FileLogger
	logger     *slog.Logger
}

func (d *device) close() {
	if d.advertiser != nil {
		d.advertiser.Stop()
	}
	if d.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			d.logger.Warn("metrics server shutdown failed", plog.Err(err))
		}
	}
	if d.traceFile != nil {
		if err := d.traceFile.Close(); err != nil {
			d.logger.Warn("protocol log close failed", plog.Err(err))
		}
	}
	if d.broker != nil {
		d.broker.Shutdown()
	}
}

// setup resolves the device identity and peer, opens the store and the
// transport and builds the device service.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*device, error) {
	role, ok := plog.ParseRole(cfg.Device.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", cfg.Device.Role)
	}

	if cfg.Store.DataDir != "" {
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	states := persistence.NewDeviceStateStore(cfg.StatePath())
	state, err := states.LoadOrCreate(cfg.Device.Role, cfg.Device.Name)
	if err != nil {
		return nil, fmt.Errorf("load device state: %w", err)
	}
	if cfg.Device.ID == "" {
		cfg.Device.ID = state.DeviceID
	}
	if cfg.Device.PeerID == "" {
		cfg.Device.PeerID = state.PeerID
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = state.PeerURL
	}

	dev := &device{logger: logger}
	if cfg.Broker.Embedded {
		b, err := broker.Start(broker.Config{
			Name:     "pairtimer-" + cfg.Device.ID,
			Host:     cfg.Broker.Host,
			Port:     cfg.Broker.Port,
			StoreDir: cfg.BrokerStoreDir(),
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded broker: %w", err)
		}
		dev.broker = b
		cfg.NATS.URL = b.ClientURL()
	}
	if cfg.Discovery.Enabled {
		if err := discover(ctx, cfg, dev, states, logger); err != nil {
			dev.close()
			return nil, err
		}
	}
	if cfg.Device.PeerID == "" {
		dev.close()
		return nil, errors.New("peer id unknown: set device.peer_id or enable discovery")
	}

	var trace plog.Logger
	if cfg.Log.ProtocolLog != "" {
		fl, err := plog.NewFileLogger(cfg.Log.ProtocolLog)
		if err != nil {
			dev.close()
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		dev.traceFile = fl
		trace = fl
		if cfg.Log.Level == "debug" {
			trace = plog.NewMultiLogger(fl, plog.NewSlogAdapter(logger))
		}
	} else if cfg.Log.Level == "debug" {
		trace = plog.NewSlogAdapter(logger)
	}

	var recorder metrics.Recorder
	if cfg.Metrics.ListenAddr != "" {
		reg := metrics.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		dev.metricsSrv = serveMetrics(cfg.Metrics.ListenAddr, reg, logger)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		dev.close()
		return nil, err
	}

	natsCfg := transport.NATSConfig{
		URL:           cfg.NATS.URL,
		DeviceID:      cfg.Device.ID,
		PeerID:        cfg.Device.PeerID,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		Bucket:        cfg.NATS.Bucket,
		Presence:      cfg.PresenceConfig(),
		Backoff:       transport.DefaultBackoff(),
		Logger:        logger,
	}
	var tr *transport.NATSTransport
	err = transport.Retry(ctx, nil, natsCfg.Backoff, func(ctx context.Context) error {
		var err error
		tr, err = transport.DialNATS(ctx, natsCfg)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		logger.Warn("NATS not reachable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			plog.Err(err))
	})
	if err != nil {
		_ = st.Close()
		dev.close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.NATS.URL, err)
	}

	svc, err := service.NewDeviceService(service.DeviceConfig{
		DeviceID:       cfg.Device.ID,
		PeerID:         cfg.Device.PeerID,
		Role:           role,
		Store:          st,
		Transport:      tr,
		AlertTitle:     cfg.AlertTitle,
		AlertBody:      cfg.Notify.Body,
		StateStore:     states,
		Recorder:       recorder,
		Logger:         logger,
		ProtocolLogger: trace,
	})
	if err != nil {
		_ = tr.Close()
		_ = st.Close()
		dev.close()
		return nil, err
	}
	dev.svc = svc
	return dev, nil
}

// discover advertises this device and, when the peer is not yet known,
// browses for the device with the opposite role.
func discover(ctx context.Context, cfg *config.Config, dev *device, states *persistence.DeviceStateStore, logger *slog.Logger) error {
	info := &discovery.PeerInfo{
		DeviceID:   cfg.Device.ID,
		Role:       cfg.Device.Role,
		DeviceName: cfg.Device.Name,
		NATSURL:    cfg.NATS.URL,
		Port:       discovery.DefaultPort,
	}
	// A broker on every interface is reached through the advertised
	// address; the loopback client URL is useless to the peer.
	if dev.broker != nil && dev.broker.ListensOnAll() {
		info.NATSURL = ""
		info.Port = uint16(dev.broker.Port())
	}

	adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
		Interface: cfg.Discovery.Interface,
		TTL:       discovery.DefaultTTL,
	})
	err := adv.Advertise(ctx, info)
	if err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	dev.advertiser = adv

	if cfg.Device.PeerID != "" && cfg.NATS.URL != "" {
		return nil
	}

	want := config.RoleCompanion
	if cfg.Device.Role == config.RoleCompanion {
		want = config.RolePrimary
	}
	logger.Info("looking for peer", slog.String("role", want))

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		BrowseTimeout: discovery.BrowseTimeout,
		Interface:     cfg.Discovery.Interface,
	})
	defer browser.Stop()

	findCtx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()
	peer, err := browser.FindPeer(findCtx, want, cfg.Device.ID)
	if err != nil {
		return fmt.Errorf("find %s peer: %w", want, err)
	}

	cfg.Device.PeerID = peer.DeviceID
	if cfg.NATS.URL == "" {
		url, err := peer.URL()
		if err != nil {
			return fmt.Errorf("peer %s: %w", peer.DeviceID, err)
		}
		cfg.NATS.URL = url
	}
	logger.Info("found peer",
		plog.Peer(peer.DeviceID),
		slog.String("name", peer.DeviceName),
		slog.String("nats_url", cfg.NATS.URL))

	return states.Update(func(st *persistence.DeviceState) {
		st.PeerID = cfg.Device.PeerID
		st.PeerURL = cfg.NATS.URL
	})
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return store.NewMemoryStore(), nil
	}
	st, err := store.OpenSQLite(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", plog.Err(err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}

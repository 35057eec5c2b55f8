package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	plog "github.com/pairtimer/pairtimer-go/pkg/log"
)

// NATS defaults.
const (
	DefaultSubjectPrefix = "pairtimer"
	DefaultBucket        = "pairtimer_context"
)

// NATSConfig configures a NATSTransport.
type NATSConfig struct {
	// URL of the NATS server. Ignored if Conn is set.
	URL string

	// Conn is an existing connection to use. It is not closed by Close.
	Conn *nats.Conn

	// DeviceID is the local device; PeerID the paired device.
	DeviceID string
	PeerID   string

	SubjectPrefix string
	Bucket        string

	Presence PresenceConfig

	// Backoff spaces reconnect attempts after the server is lost.
	Backoff Backoff

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// MsgSubject returns the subject envelopes for device are published on.
func MsgSubject(prefix, device string) string {
	return prefix + ".msg." + device
}

// PresenceSubject returns the subject device publishes heartbeats on.
func PresenceSubject(prefix, device string) string {
	return prefix + ".presence." + device
}

// ContextKey returns the KV key holding the durable context for device.
func ContextKey(device string) string {
	return "context." + device
}

// NATSTransport implements Transport on NATS.
type NATSTransport struct {
	cfg      NATSConfig
	conn     *nats.Conn
	ownsConn bool
	kv       jetstream.KeyValue
	logger   *slog.Logger
	presence *Presence

	subs    []*nats.Subscription
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	onReceive func([]byte)
	onReach   func(bool)
	closed    bool
}

// DialNATS connects to NATS, prepares the context bucket and starts
// heartbeats.
func DialNATS(ctx context.Context, cfg NATSConfig) (*NATSTransport, error) {
	if cfg.DeviceID == "" || cfg.PeerID == "" {
		return nil, errors.New("device id and peer id are required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	cfg.Presence.Clock = cfg.Clock
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	t := &NATSTransport{cfg: cfg, conn: cfg.Conn, logger: logger}
	if t.conn == nil {
		conn, err := nats.Connect(cfg.URL,
			nats.Name("pairtimer-"+cfg.DeviceID),
			nats.MaxReconnects(-1),
			nats.CustomReconnectDelay(func(attempts int) time.Duration {
				return cfg.Backoff.Delay(attempts - 1)
			}),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("NATS disconnected", plog.Err(err))
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		t.conn = conn
		t.ownsConn = true
	}

	js, err := jetstream.New(t.conn)
	if err != nil {
		t.closeConn()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if t.kv, err = contextBucket(ctx, js, cfg.Bucket); err != nil {
		t.closeConn()
		return nil, err
	}

	t.presence = NewPresence(cfg.Presence, t.heartbeat, t.reachabilityChanged)

	// The watcher and heartbeats outlive ctx; they stop on Close.
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	if err := t.subscribe(runCtx); err != nil {
		_ = t.Close()
		return nil, err
	}
	t.presence.Start(runCtx)

	logger.Info("NATS transport ready",
		plog.Device(cfg.DeviceID),
		plog.Peer(cfg.PeerID),
		slog.String("bucket", cfg.Bucket))
	return t, nil
}

// contextBucket gets or creates the durable context bucket.
func contextBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "pairtimer durable context per device",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	return kv, nil
}

func (t *NATSTransport) subscribe(ctx context.Context) error {
	prefix := t.cfg.SubjectPrefix

	msgSub, err := t.conn.Subscribe(MsgSubject(prefix, t.cfg.DeviceID), func(m *nats.Msg) {
		t.presence.Seen()
		t.deliver(m.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	t.subs = append(t.subs, msgSub)

	presSub, err := t.conn.Subscribe(PresenceSubject(prefix, t.cfg.PeerID), func(*nats.Msg) {
		t.presence.Seen()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	t.subs = append(t.subs, presSub)

	w, err := t.kv.Watch(ctx, ContextKey(t.cfg.DeviceID))
	if err != nil {
		return fmt.Errorf("failed to watch context key: %w", err)
	}
	t.watcher = w
	t.wg.Add(1)
	go t.watchContext(ctx, w)
	return nil
}

// watchContext delivers every durable context addressed to this device and
// removes it once handed to the receiver.
func (t *NATSTransport) watchContext(ctx context.Context, w jetstream.KeyWatcher) {
	defer t.wg.Done()
	for {
		var entry jetstream.KeyValueEntry
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.Updates():
			if !ok {
				return
			}
			entry = e
		}
		if entry == nil || entry.Operation() != jetstream.KeyValuePut {
			continue
		}
		t.deliver(entry.Value())

		delCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := t.kv.Delete(delCtx, entry.Key(), jetstream.LastRevision(entry.Revision()))
		cancel()
		if err != nil && !errors.Is(err, jetstream.ErrKeyExists) {
			t.logger.Debug("failed to clear durable context", plog.Err(err))
		}
	}
}

func (t *NATSTransport) deliver(data []byte) {
	t.mu.Lock()
	fn, closed := t.onReceive, t.closed
	t.mu.Unlock()
	if fn != nil && !closed {
		fn(data)
	}
}

func (t *NATSTransport) heartbeat() error {
	return t.conn.Publish(PresenceSubject(t.cfg.SubjectPrefix, t.cfg.DeviceID), nil)
}

func (t *NATSTransport) reachabilityChanged(reachable bool) {
	t.logger.Info("peer reachability changed", plog.Peer(t.cfg.PeerID), slog.Bool("reachable", reachable))
	t.mu.Lock()
	fn, closed := t.onReach, t.closed
	t.mu.Unlock()
	if fn != nil && !closed {
		fn(reachable)
	}
}

// Send publishes data to the peer's message subject.
func (t *NATSTransport) Send(data []byte) error {
	if t.isClosed() {
		return ErrClosed
	}
	if !t.presence.Reachable() {
		return ErrUnreachable
	}
	if err := t.conn.Publish(MsgSubject(t.cfg.SubjectPrefix, t.cfg.PeerID), data); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// UpdateDurableContext overwrites the peer's context key.
func (t *NATSTransport) UpdateDurableContext(data []byte) error {
	if t.isClosed() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := t.kv.Put(ctx, ContextKey(t.cfg.PeerID), data); err != nil {
		return fmt.Errorf("failed to put durable context: %w", err)
	}
	return nil
}

// IsReachable reports whether the peer's heartbeats are current.
func (t *NATSTransport) IsReachable() bool {
	return !t.isClosed() && t.presence.Reachable()
}

// OnReceive sets the inbound handler.
func (t *NATSTransport) OnReceive(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReceive = fn
}

// OnReachabilityChanged sets the reachability handler.
func (t *NATSTransport) OnReachabilityChanged(fn func(bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReach = fn
}

// Close stops heartbeats, unsubscribes and closes an owned connection.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	if t.presence != nil {
		t.presence.Stop()
	}
	var errs []error
	for _, s := range t.subs {
		errs = append(errs, s.Unsubscribe())
	}
	if t.watcher != nil {
		errs = append(errs, t.watcher.Stop())
	}
	t.wg.Wait()
	t.closeConn()
	return errors.Join(errs...)
}

func (t *NATSTransport) closeConn() {
	if t.ownsConn && t.conn != nil {
		t.conn.Close()
	}
}

func (t *NATSTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

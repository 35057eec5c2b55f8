package broker_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairtimer/pairtimer-go/pkg/broker"
	"github.com/pairtimer/pairtimer-go/pkg/transport"
)

func startBroker(t *testing.T) *broker.Broker {
	t.Helper()
	b, err := broker.Start(broker.Config{
		Host:     "127.0.0.1",
		Port:     broker.RandomPort,
		StoreDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(b.Shutdown)
	return b
}

func TestStartRequiresStoreDir(t *testing.T) {
	_, err := broker.Start(broker.Config{Port: broker.RandomPort})
	assert.Error(t, err)
}

func TestBrokerAcceptsClients(t *testing.T) {
	b := startBroker(t)

	assert.NotZero(t, b.Port())
	assert.True(t, strings.HasPrefix(b.ClientURL(), "nats://127.0.0.1:"))
	assert.False(t, b.ListensOnAll())

	nc, err := nats.Connect(b.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	assert.True(t, nc.IsConnected())
}

type inbound struct {
	mu    sync.Mutex
	msgs  []string
	reach []bool
}

func (in *inbound) attach(tr *transport.NATSTransport) {
	tr.OnReceive(func(data []byte) {
		in.mu.Lock()
		defer in.mu.Unlock()
		in.msgs = append(in.msgs, string(data))
	})
	tr.OnReachabilityChanged(func(r bool) {
		in.mu.Lock()
		defer in.mu.Unlock()
		in.reach = append(in.reach, r)
	})
}

func (in *inbound) received() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.msgs...)
}

func dial(t *testing.T, url, device, peer string) *transport.NATSTransport {
	t.Helper()
	tr, err := transport.DialNATS(context.Background(), transport.NATSConfig{
		URL:      url,
		DeviceID: device,
		PeerID:   peer,
		Presence: transport.PresenceConfig{
			Interval: 50 * time.Millisecond,
			Timeout:  300 * time.Millisecond,
		},
		Backoff: transport.DefaultBackoff(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNATSTransportOverEmbeddedBroker(t *testing.T) {
	b := startBroker(t)

	phone := dial(t, b.ClientURL(), "phone", "watch")
	watch := dial(t, b.ClientURL(), "watch", "phone")
	var phoneIn, watchIn inbound
	phoneIn.attach(phone)
	watchIn.attach(watch)

	require.Eventually(t, func() bool {
		return phone.IsReachable() && watch.IsReachable()
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, phone.Send([]byte("one")))
	require.NoError(t, phone.Send([]byte("two")))
	require.Eventually(t, func() bool {
		return len(watchIn.received()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"one", "two"}, watchIn.received())

	require.NoError(t, watch.UpdateDurableContext([]byte("bundle")))
	require.Eventually(t, func() bool {
		got := phoneIn.received()
		return len(got) == 1 && got[0] == "bundle"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNATSTransportPeerGoesAway(t *testing.T) {
	b := startBroker(t)

	phone := dial(t, b.ClientURL(), "phone", "watch")
	watch := dial(t, b.ClientURL(), "watch", "phone")
	require.Eventually(t, phone.IsReachable, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, watch.Close())
	require.Eventually(t, func() bool {
		return !phone.IsReachable()
	}, 5*time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, phone.Send([]byte("lost")), transport.ErrUnreachable)
}

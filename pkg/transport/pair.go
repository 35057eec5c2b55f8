package transport

import (
	"slices"
	"sync"
)

// link is the shared state of a Pair.
type link struct {
	mu        sync.Mutex
	reachable bool
	ends      [2]*Endpoint
}

// Endpoint is one side of an in-memory Pair.
type Endpoint struct {
	link *link
	side int

	mu        sync.Mutex
	onReceive func([]byte)
	onReach   func(bool)
	durable   []byte // context addressed to the peer, not yet delivered
	closed    bool

	inbox *inbox
}

// NewPair returns two linked endpoints. The link starts reachable.
func NewPair() (*Endpoint, *Endpoint) {
	l := &link{reachable: true}
	a := newEndpoint(l, 0)
	b := newEndpoint(l, 1)
	l.ends = [2]*Endpoint{a, b}
	return a, b
}

func newEndpoint(l *link, side int) *Endpoint {
	e := &Endpoint{link: l, side: side}
	e.inbox = newInbox(e.dispatch)
	return e
}

func (e *Endpoint) peer() *Endpoint {
	return e.link.ends[1-e.side]
}

// Send queues data for the peer.
func (e *Endpoint) Send(data []byte) error {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()

	if e.isClosed() {
		return ErrClosed
	}
	if !e.link.reachable || e.peer().isClosed() {
		return ErrUnreachable
	}
	e.peer().inbox.push(delivery{data: slices.Clone(data)})
	return nil
}

// UpdateDurableContext replaces the durable slot. While the link is up the
// value is delivered at once; otherwise it waits for the link to come back.
func (e *Endpoint) UpdateDurableContext(data []byte) error {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()

	if e.isClosed() {
		return ErrClosed
	}
	e.mu.Lock()
	e.durable = slices.Clone(data)
	e.mu.Unlock()

	if e.link.reachable {
		e.flushDurableLocked()
	}
	return nil
}

// flushDurableLocked delivers the pending durable context. Caller holds
// link.mu.
func (e *Endpoint) flushDurableLocked() {
	e.mu.Lock()
	data := e.durable
	e.durable = nil
	e.mu.Unlock()

	if data != nil && !e.peer().isClosed() {
		e.peer().inbox.push(delivery{data: data})
	}
}

// PendingContext returns the undelivered durable context, if any.
func (e *Endpoint) PendingContext() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.durable)
}

// IsReachable reports the link state.
func (e *Endpoint) IsReachable() bool {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	return e.link.reachable
}

// SetReachable switches the link. Going up first delivers each side's
// durable context, then reports the change to both endpoints.
func (e *Endpoint) SetReachable(reachable bool) {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()

	if e.link.reachable == reachable {
		return
	}
	e.link.reachable = reachable
	if reachable {
		for _, end := range e.link.ends {
			end.flushDurableLocked()
		}
	}
	for _, end := range e.link.ends {
		if !end.isClosed() {
			r := reachable
			end.inbox.push(delivery{reachable: &r})
		}
	}
}

// Pending returns the number of queued deliveries for this endpoint.
func (e *Endpoint) Pending() int {
	return e.inbox.pending()
}

// OnReceive sets the inbound handler.
func (e *Endpoint) OnReceive(fn func([]byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReceive = fn
}

// OnReachabilityChanged sets the reachability handler.
func (e *Endpoint) OnReachabilityChanged(fn func(bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReach = fn
}

// Close stops delivery to this endpoint.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.inbox.close()
	return nil
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Endpoint) dispatch(d delivery) {
	e.mu.Lock()
	onReceive, onReach := e.onReceive, e.onReach
	e.mu.Unlock()

	switch {
	case d.reachable != nil:
		if onReach != nil {
			onReach(*d.reachable)
		}
	case onReceive != nil:
		onReceive(d.data)
	}
}

package transport

import "sync"

// delivery is one queued callback invocation.
type delivery struct {
	data      []byte
	reachable *bool
}

// inbox runs callbacks on one goroutine in the order they were queued.
type inbox struct {
	mu      sync.Mutex
	queue   []delivery
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	handle  func(delivery)
}

func newInbox(handle func(delivery)) *inbox {
	in := &inbox{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		handle:  handle,
	}
	go in.run()
	return in
}

func (in *inbox) push(d delivery) {
	in.mu.Lock()
	in.queue = append(in.queue, d)
	in.mu.Unlock()

	select {
	case in.wake <- struct{}{}:
	default:
	}
}

// pending returns the number of queued deliveries not yet handled.
func (in *inbox) pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

func (in *inbox) close() {
	close(in.done)
	<-in.stopped
}

func (in *inbox) run() {
	defer close(in.stopped)
	for {
		select {
		case <-in.done:
			return
		case <-in.wake:
		}
		for {
			in.mu.Lock()
			if len(in.queue) == 0 {
				in.mu.Unlock()
				break
			}
			d := in.queue[0]
			in.queue = in.queue[1:]
			in.mu.Unlock()

			select {
			case <-in.done:
				return
			default:
			}
			in.handle(d)
		}
	}
}

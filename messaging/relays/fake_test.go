package relays

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// fakeRelay scripts how one endpoint behaves.
type fakeRelay struct {
	dialErr   error
	malformed int // nil events delivered before the stored ones
	events    []nostr.Event
	delay     time.Duration
	eose      bool // false leaves the subscription open until the deadline
	closedMsg string

	publishErr  error
	publishHang bool
}

type fakeDialer struct {
	mu     sync.Mutex
	relays map[string]*fakeRelay
	conns  []*fakeConn
	subs   atomic.Int64
}

func newFakeDialer(relays map[string]*fakeRelay) *fakeDialer {
	return &fakeDialer{relays: relays}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	r, ok := d.relays[url]
	if !ok {
		return nil, errors.New("no such host")
	}
	if r.dialErr != nil {
		return nil, r.dialErr
	}
	c := &fakeConn{dialer: d, relay: r}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) allClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		if !c.closed.Load() {
			return false
		}
	}
	return true
}

func (d *fakeDialer) dialed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type fakeConn struct {
	dialer *fakeDialer
	relay  *fakeRelay
	closed atomic.Bool
}

func (c *fakeConn) Subscribe(ctx context.Context, filter nostr.Filter) (Stream, error) {
	c.dialer.subs.Add(1)
	s := &fakeStream{
		events: make(chan *nostr.Event),
		eose:   make(chan struct{}),
		closed: make(chan string, 1),
		done:   make(chan struct{}),
	}
	r := c.relay
	go func() {
		if r.delay > 0 {
			select {
			case <-time.After(r.delay):
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		for i := 0; i < r.malformed; i++ {
			select {
			case s.events <- nil:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		for i := range r.events {
			ev := r.events[i]
			select {
			case s.events <- &ev:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		if r.closedMsg != "" {
			s.closed <- r.closedMsg
			return
		}
		if r.eose {
			close(s.eose)
		}
	}()
	return s, nil
}

func (c *fakeConn) Publish(ctx context.Context, event nostr.Event) error {
	if c.relay.publishHang {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.relay.publishErr
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeStream struct {
	events    chan *nostr.Event
	eose      chan struct{}
	closed    chan string
	done      chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Events() <-chan *nostr.Event        { return s.events }
func (s *fakeStream) EndOfStoredEvents() <-chan struct{} { return s.eose }
func (s *fakeStream) Closed() <-chan string              { return s.closed }
func (s *fakeStream) Close()                             { s.closeOnce.Do(func() { close(s.done) }) }

func contactEvent(id string, createdAt int64) nostr.Event {
	return nostr.Event{
		ID:        id,
		Kind:      3,
		CreatedAt: nostr.Timestamp(createdAt),
		Sig:       "sig",
	}
}

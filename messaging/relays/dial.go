package relays

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Stream is one open subscription on one relay.
type Stream interface {
	Events() <-chan *nostr.Event
	EndOfStoredEvents() <-chan struct{}
	// Closed yields the reason when the relay ends the subscription itself.
	Closed() <-chan string
	Close()
}

// Conn is a single relay connection. Each in-flight operation owns its own Conn.
type Conn interface {
	Subscribe(ctx context.Context, filter nostr.Filter) (Stream, error)
	// Publish sends the event and blocks until the relay answers OK or ctx ends.
	Publish(ctx context.Context, event nostr.Event) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// NostrDialer connects with go-nostr. The connection is bound to the dial context,
// so it is torn down no later than that context's deadline.
type NostrDialer struct{}

func (NostrDialer) Dial(ctx context.Context, url string) (Conn, error) {
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &nostrConn{relay: relay}, nil
}

type nostrConn struct {
	relay *nostr.Relay
}

func (c *nostrConn) Subscribe(ctx context.Context, filter nostr.Filter) (Stream, error) {
	sub, err := c.relay.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		return nil, err
	}
	return &nostrStream{sub: sub}, nil
}

func (c *nostrConn) Publish(ctx context.Context, event nostr.Event) error {
	return c.relay.Publish(ctx, event)
}

func (c *nostrConn) Close() error {
	return c.relay.Close()
}

type nostrStream struct {
	sub *nostr.Subscription
}

func (s *nostrStream) Events() <-chan *nostr.Event        { return s.sub.Events }
func (s *nostrStream) EndOfStoredEvents() <-chan struct{} { return s.sub.EndOfStoredEvents }
func (s *nostrStream) Closed() <-chan string              { return s.sub.ClosedReason }
func (s *nostrStream) Close()                             { s.sub.Unsub() }

package relays

import (
	"context"
	"fmt"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
)

// Query subscribes with filter on every endpoint concurrently and returns the union of
// what each relay delivered before its EOSE or its timeout. Unreachable relays add nothing.
// Duplicates across relays are kept.
func (c *Client) Query(ctx context.Context, endpoints []library.RelayURL, filter nostr.Filter) []nostr.Event {
	sane := library.ValidateSaneExecutionTime("relay query")
	defer sane()
	var events []nostr.Event
	eventsMu := &deadlock.Mutex{}
	wait := &deadlock.WaitGroup{}
	for _, url := range endpoints {
		wait.Add(1)
		go func(url string) {
			defer wait.Done()
			got := c.queryRelay(ctx, url, filter)
			eventsMu.Lock()
			events = append(events, got...)
			eventsMu.Unlock()
		}(url)
	}
	wait.Wait()
	return events
}

func (c *Client) queryRelay(parent context.Context, url string, filter nostr.Filter) (events []nostr.Event) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()
	conn, err := c.dialer.Dial(ctx, url)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 3)
		return nil
	}
	defer conn.Close()
	stream, err := conn.Subscribe(ctx, filter)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not subscribe on relay %s: %s", url, err), 3)
		return nil
	}
	defer stream.Close()
	collect := func(ev *nostr.Event) {
		if ev != nil {
			events = append(events, *ev)
		}
	}
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			collect(ev)
		case <-stream.EndOfStoredEvents():
			drain(stream, collect)
			return
		case reason := <-stream.Closed():
			library.LogCLI(fmt.Sprintf("relay %s closed subscription: %s", url, reason), 3)
			drain(stream, collect)
			return
		case <-ctx.Done():
			library.LogCLI(fmt.Sprintf("relay %s timed out with %d events", url, len(events)), 3)
			drain(stream, collect)
			return
		}
	}
}

// drain picks up events already queued when the stream ended so late arrivals are kept.
func drain(stream Stream, collect func(*nostr.Event)) {
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			collect(ev)
		default:
			return
		}
	}
}

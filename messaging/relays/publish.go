package relays

import (
	"context"
	"errors"
	"fmt"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
)

var ErrUnsigned = errors.New("event has no signature")

// Outcome is one relay's answer to a publish.
type Outcome struct {
	Relay    library.RelayURL
	Accepted bool
	Message  string
	Err      error
}

type Outcomes []Outcome

// Accepted applies the quorum-of-one rule: a single acknowledging relay is enough.
func (o Outcomes) Accepted() bool {
	for _, outcome := range o {
		if outcome.Accepted {
			return true
		}
	}
	return false
}

func (o Outcomes) AcceptedBy() (r []library.RelayURL) {
	for _, outcome := range o {
		if outcome.Accepted {
			r = append(r, outcome.Relay)
		}
	}
	return
}

// Publish sends event to every endpoint concurrently. Outcomes are in endpoint order.
// Unsigned events are never sent.
func (c *Client) Publish(ctx context.Context, endpoints []library.RelayURL, event nostr.Event) Outcomes {
	outcomes := make(Outcomes, len(endpoints))
	if event.Sig == "" {
		for i, url := range endpoints {
			outcomes[i] = Outcome{Relay: url, Message: "unsigned", Err: ErrUnsigned}
		}
		return outcomes
	}
	sane := library.ValidateSaneExecutionTime("relay publish")
	defer sane()
	var wg = &deadlock.WaitGroup{}
	for i, url := range endpoints {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			outcomes[i] = c.publishRelay(ctx, url, event)
		}(i, url)
	}
	wg.Wait()
	return outcomes
}

func (c *Client) publishRelay(parent context.Context, url string, event nostr.Event) Outcome {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()
	conn, err := c.dialer.Dial(ctx, url)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 3)
		return Outcome{Relay: url, Message: "connect error", Err: err}
	}
	defer conn.Close()
	if err := conn.Publish(ctx, event); err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "timeout"
		}
		library.LogCLI(fmt.Sprintf("could not publish to relay %s: %s", url, msg), 3)
		return Outcome{Relay: url, Message: msg, Err: err}
	}
	return Outcome{Relay: url, Accepted: true}
}

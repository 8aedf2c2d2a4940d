package relays

import (
	"time"
)

// DefaultTimeout bounds every per-relay operation when none is configured.
const DefaultTimeout = 6 * time.Second

// Client fans queries and publishes out to independent relays. It keeps no state
// between calls; every operation opens and closes its own connections.
type Client struct {
	dialer  Dialer
	timeout time.Duration
}

func NewClient(dialer Dialer, perRelayTimeout time.Duration) *Client {
	if dialer == nil {
		dialer = NostrDialer{}
	}
	if perRelayTimeout <= 0 {
		perRelayTimeout = DefaultTimeout
	}
	return &Client{dialer: dialer, timeout: perRelayTimeout}
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

package relays

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWireRelay runs a minimal relay that answers REQ with stored events then EOSE,
// and EVENT with OK carrying accept.
func startWireRelay(t *testing.T, stored []nostr.Event, accept bool) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		send := func(v []any) error {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return c.Write(ctx, websocket.MessageText, b)
		}
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var msg []json.RawMessage
			if json.Unmarshal(data, &msg) != nil || len(msg) < 2 {
				continue
			}
			var typ string
			_ = json.Unmarshal(msg[0], &typ)
			switch typ {
			case "REQ":
				var subID string
				_ = json.Unmarshal(msg[1], &subID)
				_ = c.Write(ctx, websocket.MessageText, []byte("this is not json"))
				for _, ev := range stored {
					if send([]any{"EVENT", subID, ev}) != nil {
						return
					}
				}
				if send([]any{"EOSE", subID}) != nil {
					return
				}
			case "EVENT":
				var ev nostr.Event
				if json.Unmarshal(msg[1], &ev) != nil {
					continue
				}
				message := ""
				if !accept {
					message = "blocked: test"
				}
				if send([]any{"OK", ev.ID, accept, message}) != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func signedContactList(t *testing.T, sk string, createdAt int64, follows ...string) nostr.Event {
	t.Helper()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	ev := nostr.Event{
		PubKey:    pk,
		Kind:      3,
		CreatedAt: nostr.Timestamp(createdAt),
		Tags:      nostr.Tags{},
	}
	for _, f := range follows {
		ev.Tags = append(ev.Tags, nostr.Tag{"p", f})
	}
	require.NoError(t, ev.Sign(sk))
	return ev
}

func TestNostrDialer_QueryAndPublishOverWebsocket(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	stored := signedContactList(t, sk, 1700000000, strings.Repeat("ab", 32))
	accepting := startWireRelay(t, []nostr.Event{stored}, true)
	rejecting := startWireRelay(t, nil, false)

	client := NewClient(NostrDialer{}, 3*time.Second)
	filter := nostr.Filter{Kinds: []int{3}, Authors: []string{stored.PubKey}, Limit: 1}

	events := client.Query(context.Background(), []string{accepting, rejecting}, filter)
	require.Len(t, events, 1)
	assert.Equal(t, stored.ID, events[0].ID)

	next := signedContactList(t, sk, 1700000100, strings.Repeat("ab", 32), strings.Repeat("cd", 32))
	outcomes := client.Publish(context.Background(), []string{accepting, rejecting}, next)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Accepted)
	assert.False(t, outcomes[1].Accepted)
	assert.True(t, outcomes.Accepted())
}

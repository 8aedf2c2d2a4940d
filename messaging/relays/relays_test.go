package relays

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contactFilter = nostr.Filter{Kinds: []int{3}, Authors: []string{"author"}, Limit: 1}

func TestClient_Query_UnionAcrossRelays(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://a": {events: []nostr.Event{contactEvent("a1", 100)}, eose: true},
		"wss://b": {events: []nostr.Event{contactEvent("b1", 300), contactEvent("a1", 100)}, eose: true},
		"wss://c": {events: []nostr.Event{contactEvent("c1", 200)}, eose: true},
	})
	client := NewClient(dialer, time.Second)

	events := client.Query(context.Background(), []string{"wss://a", "wss://b", "wss://c"}, contactFilter)

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	assert.ElementsMatch(t, []string{"a1", "b1", "a1", "c1"}, ids)
	assert.EqualValues(t, 3, dialer.subs.Load())
	assert.True(t, dialer.allClosed())
}

func TestClient_Query_KeepsPartialResultsOnTimeout(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://slow": {events: []nostr.Event{contactEvent("s1", 1), contactEvent("s2", 2)}, eose: false},
	})
	client := NewClient(dialer, 100*time.Millisecond)

	start := time.Now()
	events := client.Query(context.Background(), []string{"wss://slow"}, contactFilter)

	assert.Len(t, events, 2)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, dialer.allClosed())
}

func TestClient_Query_IgnoresMalformedMessages(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://noisy": {malformed: 3, events: []nostr.Event{contactEvent("n1", 5)}, eose: true},
	})
	client := NewClient(dialer, time.Second)

	events := client.Query(context.Background(), []string{"wss://noisy"}, contactFilter)

	require.Len(t, events, 1)
	assert.Equal(t, "n1", events[0].ID)
}

func TestClient_Query_UnreachableRelaysYieldNothing(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://down": {dialErr: errors.New("connection refused")},
		"wss://up":   {events: []nostr.Event{contactEvent("u1", 1)}, eose: true},
	})
	client := NewClient(dialer, time.Second)

	events := client.Query(context.Background(), []string{"wss://down", "wss://missing", "wss://up"}, contactFilter)

	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].ID)
}

func TestClient_Query_RelayClosedSubscription(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://strict": {events: []nostr.Event{contactEvent("x1", 1)}, closedMsg: "auth-required: sign in"},
	})
	client := NewClient(dialer, 5*time.Second)

	start := time.Now()
	events := client.Query(context.Background(), []string{"wss://strict"}, contactFilter)

	assert.Len(t, events, 1)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Query_NoEndpoints(t *testing.T) {
	client := NewClient(newFakeDialer(nil), time.Second)
	assert.Empty(t, client.Query(context.Background(), nil, contactFilter))
}

func TestClient_Publish_QuorumOfOne(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://hang":   {publishHang: true},
		"wss://down":   {dialErr: errors.New("refused")},
		"wss://reject": {publishErr: errors.New("msg: blocked: spam")},
		"wss://ok":     {},
	})
	client := NewClient(dialer, 100*time.Millisecond)
	endpoints := []string{"wss://hang", "wss://down", "wss://reject", "wss://ok"}

	outcomes := client.Publish(context.Background(), endpoints, contactEvent("e1", 1))

	require.Len(t, outcomes, 4)
	assert.True(t, outcomes.Accepted())
	assert.Equal(t, []string{"wss://ok"}, outcomes.AcceptedBy())

	assert.Equal(t, "wss://hang", outcomes[0].Relay)
	assert.Equal(t, "timeout", outcomes[0].Message)
	assert.Equal(t, "connect error", outcomes[1].Message)
	assert.Equal(t, "msg: blocked: spam", outcomes[2].Message)
	assert.True(t, outcomes[3].Accepted)
	assert.True(t, dialer.allClosed())
}

func TestClient_Publish_AllFail(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{
		"wss://a": {publishErr: errors.New("msg: rejected")},
		"wss://b": {dialErr: errors.New("refused")},
	})
	client := NewClient(dialer, 100*time.Millisecond)

	outcomes := client.Publish(context.Background(), []string{"wss://a", "wss://b"}, contactEvent("e1", 1))

	assert.False(t, outcomes.Accepted())
	assert.Empty(t, outcomes.AcceptedBy())
}

func TestClient_Publish_NoEndpoints(t *testing.T) {
	client := NewClient(newFakeDialer(nil), time.Second)
	outcomes := client.Publish(context.Background(), nil, contactEvent("e1", 1))
	assert.Empty(t, outcomes)
	assert.False(t, outcomes.Accepted())
}

func TestClient_Publish_RefusesUnsigned(t *testing.T) {
	dialer := newFakeDialer(map[string]*fakeRelay{"wss://ok": {}})
	client := NewClient(dialer, time.Second)
	ev := contactEvent("e1", 1)
	ev.Sig = ""

	outcomes := client.Publish(context.Background(), []string{"wss://ok"}, ev)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes.Accepted())
	assert.ErrorIs(t, outcomes[0].Err, ErrUnsigned)
	assert.Zero(t, dialer.dialed())
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(nil, 0)
	assert.Equal(t, DefaultTimeout, client.Timeout())
	assert.IsType(t, NostrDialer{}, client.dialer)
}

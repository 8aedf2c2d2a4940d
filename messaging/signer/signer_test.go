package signer

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/npub"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const target = "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"

type keyCapability struct {
	sk     string
	fail   error
	noSig  bool
	ready  bool
	rdyErr error
	asNpub bool
}

func newKeyCapability() *keyCapability {
	return &keyCapability{sk: nostr.GeneratePrivateKey(), ready: true}
}

func (k *keyCapability) pub(t *testing.T) string {
	pk, err := nostr.GetPublicKey(k.sk)
	require.NoError(t, err)
	return pk
}

func (k *keyCapability) GetPublicKey(context.Context) (string, error) {
	if k.fail != nil {
		return "", k.fail
	}
	pk, err := nostr.GetPublicKey(k.sk)
	if err != nil || !k.asNpub {
		return pk, err
	}
	n, _ := npub.Encode(pk)
	return n, nil
}

func (k *keyCapability) SignEvent(_ context.Context, evt *nostr.Event) error {
	if k.fail != nil {
		return k.fail
	}
	if k.noSig {
		return nil
	}
	return evt.Sign(k.sk)
}

func (k *keyCapability) IsReady() (bool, error) {
	return k.ready, k.rdyErr
}

func followEvent() *nostr.Event {
	return &nostr.Event{
		Kind:      3,
		CreatedAt: nostr.Timestamp(1700000000),
		Tags:      nostr.Tags{{"p", target}},
		Content:   "",
	}
}

func TestProbe_SelectsStrategy(t *testing.T) {
	store := session.NewMemoryStore(0)

	assert.Equal(t, ModeRedirect, Probe(nil, store, "https://example.org/").Mode())

	ready := newKeyCapability()
	assert.Equal(t, ModeInProcess, Probe(ready, store, "https://example.org/").Mode())

	notReady := newKeyCapability()
	notReady.ready = false
	assert.Equal(t, ModeRedirect, Probe(notReady, store, "https://example.org/").Mode())

	broken := newKeyCapability()
	broken.rdyErr = errors.New("no bus")
	assert.Equal(t, ModeRedirect, Probe(broken, store, "https://example.org/").Mode())
}

func TestInProcess_Identify(t *testing.T) {
	ctx := context.Background()
	capability := newKeyCapability()
	s := NewInProcess(capability, session.NewMemoryStore(0))

	step, err := s.Identify(ctx)
	require.NoError(t, err)
	assert.False(t, step.Suspended())
	assert.Equal(t, capability.pub(t), step.PubKey)

	capability.asNpub = true
	step, err = s.Identify(ctx)
	require.NoError(t, err)
	assert.Equal(t, capability.pub(t), step.PubKey)

	capability.fail = errors.New("user said no")
	_, err = s.Identify(ctx)
	assert.ErrorIs(t, err, library.ErrSignerDenied)
}

func TestInProcess_Unavailable(t *testing.T) {
	s := NewInProcess(nil, session.NewMemoryStore(0))
	_, err := s.Identify(context.Background())
	assert.ErrorIs(t, err, library.ErrSignerUnavailable)
	_, err = s.Sign(context.Background(), followEvent(), target)
	assert.ErrorIs(t, err, library.ErrSignerUnavailable)
}

func TestInProcess_SignLeavesInputAlone(t *testing.T) {
	ctx := context.Background()
	capability := newKeyCapability()
	s := NewInProcess(capability, session.NewMemoryStore(0))
	evt := followEvent()

	step, err := s.Sign(ctx, evt, target)
	require.NoError(t, err)
	require.NotNil(t, step.Signed)
	assert.Empty(t, evt.Sig)
	assert.Empty(t, evt.ID)

	valid, err := step.Signed.CheckSignature()
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, capability.pub(t), step.Signed.PubKey)

	pending, ok := s.Pending(ctx)
	assert.True(t, ok)
	assert.Equal(t, target, pending)

	require.NoError(t, s.Settle(ctx))
	_, ok = s.Pending(ctx)
	assert.False(t, ok)
}

func TestInProcess_SignFailureClearsPending(t *testing.T) {
	ctx := context.Background()
	capability := newKeyCapability()
	s := NewInProcess(capability, session.NewMemoryStore(0))

	capability.fail = errors.New("rejected")
	_, err := s.Sign(ctx, followEvent(), target)
	assert.ErrorIs(t, err, library.ErrSignerDenied)
	_, ok := s.Pending(ctx)
	assert.False(t, ok)

	capability.fail = nil
	capability.noSig = true
	_, err = s.Sign(ctx, followEvent(), target)
	assert.ErrorIs(t, err, library.ErrSignerPayloadUnrecognized)
	_, ok = s.Pending(ctx)
	assert.False(t, ok)
}

func TestInProcess_ResumeHasNothing(t *testing.T) {
	s := NewInProcess(newKeyCapability(), session.NewMemoryStore(0))
	u, _ := url.Parse("https://example.org/dir?signer_event=%7B%7D")
	res, err := s.Resume(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, NoResult, res.Kind)
}

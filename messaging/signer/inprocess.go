package signer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/npub"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/nbd-wtf/go-nostr"
)

// InProcess signs through a capability that answers within the same call.
type InProcess struct {
	pendingFollow
	capability Capability
}

func NewInProcess(capability Capability, store session.Store) *InProcess {
	return &InProcess{pendingFollow: pendingFollow{store: store}, capability: capability}
}

func (s *InProcess) Mode() Mode { return ModeInProcess }

func (s *InProcess) Identify(ctx context.Context) (Step, error) {
	if s.capability == nil {
		return Step{}, library.ErrSignerUnavailable
	}
	pk, err := s.capability.GetPublicKey(ctx)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %v", library.ErrSignerDenied, err)
	}
	account, ok := npub.Resolve(pk)
	if !ok {
		return Step{}, fmt.Errorf("%w: public key %q", library.ErrSignerPayloadUnrecognized, pk)
	}
	return Step{PubKey: account}, nil
}

func (s *InProcess) Sign(ctx context.Context, evt *nostr.Event, target library.Account) (Step, error) {
	if s.capability == nil {
		return Step{}, library.ErrSignerUnavailable
	}
	if err := s.mark(ctx, target); err != nil {
		return Step{}, err
	}
	signed := *evt
	signed.Tags = library.CopyTags(evt.Tags)
	if err := s.capability.SignEvent(ctx, &signed); err != nil {
		_ = s.Settle(ctx)
		return Step{}, fmt.Errorf("%w: %v", library.ErrSignerDenied, err)
	}
	if signed.Sig == "" {
		_ = s.Settle(ctx)
		return Step{}, fmt.Errorf("%w: missing sig", library.ErrSignerPayloadUnrecognized)
	}
	return Step{Signed: &signed}, nil
}

// Resume has nothing to pick up: in-process results never leave the call that asked for them.
func (s *InProcess) Resume(_ context.Context, u *url.URL) (Resumption, error) {
	return Resumption{Kind: NoResult, CleanURL: u.String()}, nil
}

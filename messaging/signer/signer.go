// Package signer obtains signatures from a capability outside this process's key material.
// Two strategies share one Handshake: an in-process capability that answers directly, and an
// external app reached by redirect whose answer arrives on a later request.
package signer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/nbd-wtf/go-nostr"
)

type Mode string

const (
	ModeInProcess Mode = "in-process"
	ModeRedirect  Mode = "redirect"
)

// Capability is anything that holds a key and signs on request. go-nostr keyers satisfy it.
type Capability interface {
	GetPublicKey(ctx context.Context) (string, error)
	SignEvent(ctx context.Context, evt *nostr.Event) error
}

// Readier is implemented by capabilities that can say whether they are reachable without
// prompting the user.
type Readier interface {
	IsReady() (bool, error)
}

// Step is what starting a request produced: the answer itself, or an address to hand control to.
type Step struct {
	PubKey   library.Account
	Signed   *nostr.Event
	Redirect string
}

// Suspended reports whether the flow continues on a later request.
func (s Step) Suspended() bool {
	return s.Redirect != ""
}

type ResultKind int

const (
	NoResult ResultKind = iota
	PublicKeyResult
	SignatureResult
	// AbandonedResult means the signer returned without a result while a follow was pending.
	AbandonedResult
)

// Resumption is what a reloaded address carried back from the external signer.
type Resumption struct {
	Kind   ResultKind
	PubKey library.Account
	Signed *nostr.Event
	// Target is the pending follow this signature was requested for, consumed by this call.
	Target library.Account
	// CleanURL is the address with the result payload removed.
	CleanURL string
}

type Handshake interface {
	Mode() Mode
	Identify(ctx context.Context) (Step, error)
	// Sign records target as the pending follow and requests a signature for evt.
	// evt is not modified.
	Sign(ctx context.Context, evt *nostr.Event, target library.Account) (Step, error)
	Pending(ctx context.Context) (library.Account, bool)
	// Settle clears the pending follow once the action has finished either way.
	Settle(ctx context.Context) error
	Resume(ctx context.Context, u *url.URL) (Resumption, error)
}

// Factory builds the handshake for one session store.
type Factory func(store session.Store) Handshake

// ProbeFactory selects the strategy once at startup: in-process when the capability is present
// and ready, otherwise redirect to callback.
func ProbeFactory(capability Capability, callback string) Factory {
	if capability != nil {
		ready := true
		if r, ok := capability.(Readier); ok {
			var err error
			ready, err = r.IsReady()
			if err != nil {
				library.LogCLI(fmt.Sprintf("signer capability not reachable: %s", err), 3)
				ready = false
			}
		}
		if ready {
			library.LogCLI("using in-process signer", 4)
			return func(store session.Store) Handshake { return NewInProcess(capability, store) }
		}
	}
	library.LogCLI("using redirect signer", 4)
	return func(store session.Store) Handshake { return NewRedirect(store, callback) }
}

func Probe(capability Capability, store session.Store, callback string) Handshake {
	return ProbeFactory(capability, callback)(store)
}

// pendingFollow is the resume state shared by both strategies.
type pendingFollow struct {
	store session.Store
}

func (p pendingFollow) Pending(ctx context.Context) (library.Account, bool) {
	v, ok, err := p.store.Get(ctx, session.KeyPending)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not read pending follow: %s", err), 2)
		return "", false
	}
	return v, ok
}

func (p pendingFollow) Settle(ctx context.Context) error {
	return p.store.Remove(ctx, session.KeyPending)
}

func (p pendingFollow) mark(ctx context.Context, target library.Account) error {
	return p.store.Set(ctx, session.KeyPending, target)
}

func cleanURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

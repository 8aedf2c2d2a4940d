package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/npub"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/nbd-wtf/go-nostr"
)

const (
	// Scheme is the NIP-55 external signer URI scheme.
	Scheme = "nostrsigner:"

	ParamPubKey = "signer_pubkey"
	ParamEvent  = "signer_event"
)

// Redirect hands requests to an external signer app and picks the answers up when the app
// reopens the callback address. Everything needed to resume is written to the session
// store before control leaves, since nothing in memory survives the trip.
type Redirect struct {
	pendingFollow
	callback string
}

// NewRedirect takes the absolute callback address, without query, that the signer reopens.
func NewRedirect(store session.Store, callback string) *Redirect {
	return &Redirect{pendingFollow: pendingFollow{store: store}, callback: callback}
}

func (s *Redirect) Mode() Mode { return ModeRedirect }

// encodeComponent escapes like encodeURIComponent: spaces become %20, never '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (s *Redirect) callbackFor(param string) string {
	return encodeComponent(s.callback + "?" + param + "=")
}

func (s *Redirect) Identify(context.Context) (Step, error) {
	uri := fmt.Sprintf("%s?compressionType=none&returnType=signature&type=get_public_key&callbackUrl=%s",
		Scheme, s.callbackFor(ParamPubKey))
	return Step{Redirect: uri}, nil
}

type unsignedEvent struct {
	PubKey    string          `json:"pubkey,omitempty"`
	CreatedAt nostr.Timestamp `json:"created_at"`
	Kind      int             `json:"kind"`
	Tags      nostr.Tags      `json:"tags"`
	Content   string          `json:"content"`
}

func (s *Redirect) Sign(ctx context.Context, evt *nostr.Event, target library.Account) (Step, error) {
	tags := evt.Tags
	if tags == nil {
		tags = nostr.Tags{}
	}
	payload, err := json.Marshal(unsignedEvent{
		PubKey:    evt.PubKey,
		CreatedAt: evt.CreatedAt,
		Kind:      evt.Kind,
		Tags:      tags,
		Content:   evt.Content,
	})
	if err != nil {
		return Step{}, err
	}
	if err := s.mark(ctx, target); err != nil {
		return Step{}, fmt.Errorf("could not persist pending follow: %w", err)
	}
	uri := fmt.Sprintf("%s%s?compressionType=none&returnType=event&type=sign_event&callbackUrl=%s",
		Scheme, encodeComponent(string(payload)), s.callbackFor(ParamEvent))
	return Step{Redirect: uri}, nil
}

// Resume reads a result appended to u. The payload is appended raw by the signer, so the
// query is inspected as text rather than parsed as key=value pairs. A signature result
// consumes the pending follow whether or not it decodes. So does a return with no result at all.
func (s *Redirect) Resume(ctx context.Context, u *url.URL) (Resumption, error) {
	raw := u.RawQuery
	clean := cleanURL(u)
	switch {
	case strings.HasPrefix(raw, ParamPubKey+"="):
		res := Resumption{Kind: PublicKeyResult, CleanURL: clean}
		pk, ok := parseReturnedKey(raw[len(ParamPubKey)+1:])
		if !ok {
			return res, fmt.Errorf("%w: no public key returned", library.ErrSignerDenied)
		}
		res.PubKey = pk
		return res, nil

	case strings.HasPrefix(raw, ParamEvent+"="):
		target, _, err := s.store.Take(ctx, session.KeyPending)
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not consume pending follow: %s", err), 2)
		}
		res := Resumption{Kind: SignatureResult, Target: target, CleanURL: clean}
		value := raw[len(ParamEvent)+1:]
		if value == "" {
			return res, fmt.Errorf("%w: empty signature result", library.ErrSignerDenied)
		}
		signed, err := DecodeSignedPayload(value)
		if err != nil {
			return res, err
		}
		res.Signed = signed
		return res, nil
	}
	// Back without a payload: the request was cancelled in the signer app.
	target, ok, err := s.store.Take(ctx, session.KeyPending)
	if err != nil {
		return Resumption{Kind: NoResult, CleanURL: u.String()}, err
	}
	if ok {
		return Resumption{Kind: AbandonedResult, Target: target, CleanURL: u.String()},
			fmt.Errorf("%w: no result returned for %s", library.ErrSignerDenied, target)
	}
	return Resumption{Kind: NoResult, CleanURL: u.String()}, nil
}

// parseReturnedKey accepts at least 64 hex characters, truncated to 64, or an npub.
func parseReturnedKey(value string) (library.Account, bool) {
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	if len(value) >= npub.KeyLength*2 && npub.IsHexKey(value[:npub.KeyLength*2]) {
		return strings.ToLower(value[:npub.KeyLength*2]), true
	}
	if strings.HasPrefix(strings.ToLower(value), npub.HRP+"1") {
		return npub.Decode(value)
	}
	return "", false
}

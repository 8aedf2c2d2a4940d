// Package follow drives a follow from the button press to the published contact list. An
// Engine is bound to one session; everything it must remember across requests lives in
// that session's store.
package follow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/npub"
	"github.com/Crackloss/nostrweb/messaging/relays"
	"github.com/Crackloss/nostrweb/messaging/signer"
	"github.com/Crackloss/nostrweb/state/contacts"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
)

// Relays is the fan-out client as seen by the engine.
type Relays interface {
	contacts.Querier
	Publish(ctx context.Context, endpoints []library.RelayURL, event nostr.Event) relays.Outcomes
}

type Config struct {
	ReadRelays  []library.RelayURL
	WriteRelays []library.RelayURL
}

type Engine struct {
	config    Config
	relays    Relays
	contacts  *contacts.Repository
	store     session.Store
	handshake signer.Handshake
	mutex     *deadlock.Mutex
	identity  library.Account
}

func New(config Config, relays Relays, store session.Store, handshake signer.Handshake) *Engine {
	return &Engine{
		config:    config,
		relays:    relays,
		contacts:  contacts.NewRepository(relays, config.ReadRelays),
		store:     store,
		handshake: handshake,
		mutex:     &deadlock.Mutex{},
	}
}

func (e *Engine) Mode() signer.Mode {
	return e.handshake.Mode()
}

func (e *Engine) Identity() (library.Account, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.identity, e.identity != ""
}

func (e *Engine) Follows() contacts.FollowSet {
	return e.contacts.Follows()
}

// Restore loads identity and the cached contact list from the session without touching relays.
func (e *Engine) Restore(ctx context.Context) error {
	id, ok, err := e.store.Get(ctx, session.KeyIdentity)
	if err != nil {
		return err
	}
	e.mutex.Lock()
	e.identity = ""
	if ok {
		e.identity = id
	}
	e.mutex.Unlock()

	var current *nostr.Event
	if raw, ok, err := e.store.Get(ctx, session.KeyContactEvent); err != nil {
		return err
	} else if ok {
		var evt nostr.Event
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			library.LogCLI(fmt.Sprintf("dropping unreadable cached contact list: %s", err), 2)
		} else {
			current = &evt
		}
	}
	follows := contacts.FollowSet{}
	if raw, ok, err := e.store.Get(ctx, session.KeyContacts); err != nil {
		return err
	} else if ok {
		var list []library.Account
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			library.LogCLI(fmt.Sprintf("dropping unreadable cached follow set: %s", err), 2)
		} else {
			follows = contacts.FollowSetOf(list...)
		}
	}
	e.contacts.Restore(current, follows)
	return nil
}

// Connect asks the signer who the user is. A suspended step means the answer comes back
// through Resume.
func (e *Engine) Connect(ctx context.Context) (signer.Step, error) {
	step, err := e.handshake.Identify(ctx)
	if err != nil || step.Suspended() {
		return step, err
	}
	if err := e.connected(ctx, step.PubKey); err != nil {
		return step, err
	}
	return step, nil
}

func (e *Engine) connected(ctx context.Context, account library.Account) error {
	if err := e.store.Set(ctx, session.KeyIdentity, account); err != nil {
		return err
	}
	e.mutex.Lock()
	changed := e.identity != account
	e.identity = account
	e.mutex.Unlock()
	if changed {
		e.contacts.Reset()
		if err := e.store.Remove(ctx, session.KeyContacts, session.KeyContactEvent); err != nil {
			return err
		}
	}
	library.LogCLI(fmt.Sprintf("connected as %s", account), 4)
	if err := e.Refresh(ctx); err != nil {
		library.LogCLI(err, 2)
	}
	return nil
}

func (e *Engine) Disconnect(ctx context.Context) error {
	e.mutex.Lock()
	e.identity = ""
	e.mutex.Unlock()
	e.contacts.Reset()
	return session.Clear(ctx, e.store)
}

// Refresh pulls the authoritative contact list from the read relays.
func (e *Engine) Refresh(ctx context.Context) error {
	id, ok := e.Identity()
	if !ok {
		return library.ErrNotConnected
	}
	if e.contacts.Refresh(ctx, id) {
		return e.mirror(ctx)
	}
	return nil
}

// mirror writes the repository into the session. A cached contact list is only replaced by
// a newer one.
func (e *Engine) mirror(ctx context.Context) error {
	follows, err := json.Marshal(e.contacts.Follows().Sorted())
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, session.KeyContacts, string(follows)); err != nil {
		return err
	}
	current := e.contacts.Current()
	if current == nil {
		return nil
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return err
	}
	return e.store.Update(ctx, session.KeyContactEvent, func(cached string, ok bool) (string, bool) {
		if ok {
			var held nostr.Event
			if json.Unmarshal([]byte(cached), &held) == nil && contacts.Newer(&held, current) {
				return cached, true
			}
		}
		return string(encoded), true
	})
}

// Render reports the state of every candidate the directory shows. Candidates that are not
// identifiers are skipped.
func (e *Engine) Render(ctx context.Context, view Directory) {
	self, _ := e.Identity()
	pending, _ := e.handshake.Pending(ctx)
	follows := e.contacts.Follows()
	for _, candidate := range view.Candidates() {
		account, ok := npub.Resolve(candidate)
		if !ok {
			library.LogCLI(fmt.Sprintf("skipping %q: not an identifier", candidate), 3)
			continue
		}
		switch {
		case account == self:
			view.Render(candidate, Self)
		case account == pending:
			view.Render(candidate, Pending)
		case follows.Has(account):
			view.Render(candidate, Following)
		default:
			view.Render(candidate, NotFollowing)
		}
	}
}

// Follow adds target to the user's contact list. Following someone already followed is a
// no-op that returns a zero Step. With a redirect signer the returned Step carries the
// address to send the user to, and the follow completes in Resume.
func (e *Engine) Follow(ctx context.Context, target string) (signer.Step, error) {
	self, ok := e.Identity()
	if !ok {
		return signer.Step{}, library.ErrNotConnected
	}
	account, ok := npub.Resolve(target)
	if !ok {
		return signer.Step{}, fmt.Errorf("%w: %q", library.ErrInvalidIdentifier, target)
	}
	unsigned, ok := contacts.BuildFollowEvent(e.contacts.Current(), account)
	if !ok || e.contacts.IsFollowing(account) {
		library.LogCLI(fmt.Sprintf("already following %s", account), 4)
		return signer.Step{}, nil
	}
	unsigned.PubKey = self

	step, err := e.handshake.Sign(ctx, unsigned, account)
	if err != nil {
		e.notice(ctx, NoticeSignerError)
		return step, err
	}
	if step.Suspended() {
		return step, nil
	}
	if err := e.authored(step.Signed); err != nil {
		e.notice(ctx, NoticeSignerError)
		e.settle(ctx)
		return step, err
	}
	return step, e.publish(ctx, step.Signed, account)
}

// authored rejects a signed contact list that is not the session identity's own.
func (e *Engine) authored(signed *nostr.Event) error {
	if signed.Kind != contacts.KindContactList {
		return fmt.Errorf("%w: expected kind %d, got %d", library.ErrSignerPayloadUnrecognized, contacts.KindContactList, signed.Kind)
	}
	self, ok := e.Identity()
	if !ok {
		return library.ErrNotConnected
	}
	if signed.PubKey != self {
		return fmt.Errorf("%w: signed by %s, connected as %s", library.ErrSignerPayloadUnrecognized, signed.PubKey, self)
	}
	return nil
}

// Resume picks up whatever the external signer appended to u. The returned Resumption carries
// the address to show once the payload is stripped.
func (e *Engine) Resume(ctx context.Context, u *url.URL) (signer.Resumption, error) {
	res, err := e.handshake.Resume(ctx, u)
	switch res.Kind {
	case signer.PublicKeyResult:
		if err != nil {
			e.notice(ctx, NoticeSignerError)
			return res, err
		}
		return res, e.connected(ctx, res.PubKey)

	case signer.SignatureResult:
		if err == nil {
			err = e.authored(res.Signed)
		}
		if err != nil {
			e.notice(ctx, NoticeSignerError)
			e.settle(ctx)
			return res, err
		}
		if res.Target == "" {
			library.LogCLI("signed contact list arrived without a pending follow", 3)
		}
		return res, e.publish(ctx, res.Signed, res.Target)

	case signer.AbandonedResult:
		library.LogCLI(fmt.Sprintf("follow of %s abandoned in the signer", res.Target), 3)
		e.notice(ctx, NoticeSignerError)
		return res, err
	}
	return res, err
}

// publish sends a signed contact list to the write relays. Only on acceptance does it become
// authoritative. The pending follow is cleared either way.
func (e *Engine) publish(ctx context.Context, signed *nostr.Event, target library.Account) error {
	defer e.settle(ctx)
	outcomes := e.relays.Publish(ctx, e.config.WriteRelays, *signed)
	if !outcomes.Accepted() {
		e.notice(ctx, NoticeFollowError)
		return fmt.Errorf("%w: %d relays tried", library.ErrPublishQuorumFailed, len(outcomes))
	}
	library.LogCLI(fmt.Sprintf("contact list %s accepted by %v", signed.ID, outcomes.AcceptedBy()), 4)
	var extra []library.Account
	if target != "" {
		extra = append(extra, target)
	}
	e.contacts.Adopt(signed, extra...)
	e.notice(ctx, NoticeFollowOK)
	return e.mirror(ctx)
}

func (e *Engine) settle(ctx context.Context) {
	if err := e.handshake.Settle(ctx); err != nil {
		library.LogCLI(fmt.Sprintf("could not clear pending follow: %s", err), 2)
	}
}

func (e *Engine) notice(ctx context.Context, notice string) {
	if err := e.store.Set(ctx, session.KeyNotice, notice); err != nil {
		library.LogCLI(fmt.Sprintf("could not store notice: %s", err), 2)
	}
}

// TakeNotice returns the notice left by the last follow attempt, once.
func (e *Engine) TakeNotice(ctx context.Context) string {
	n, _, err := e.store.Take(ctx, session.KeyNotice)
	if err != nil && !errors.Is(err, session.ErrClosed) {
		library.LogCLI(err, 2)
	}
	return n
}

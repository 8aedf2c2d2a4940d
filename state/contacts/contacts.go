// Package contacts tracks the user's authoritative kind-3 contact list and the follow set
// derived from its "p" tags.
package contacts

import (
	"context"
	"fmt"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
)

const KindContactList = 3

// Querier is the read half of the relay fan-out client.
type Querier interface {
	Query(ctx context.Context, endpoints []library.RelayURL, filter nostr.Filter) []nostr.Event
}

// FollowSet is the set of followed accounts, compared by exact hex string.
type FollowSet map[library.Account]struct{}

func (f FollowSet) Has(account library.Account) bool {
	_, ok := f[account]
	return ok
}

func (f FollowSet) Sorted() []library.Account {
	out := make([]library.Account, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func FollowSetOf(accounts ...library.Account) FollowSet {
	f := make(FollowSet, len(accounts))
	for _, a := range accounts {
		f[a] = struct{}{}
	}
	return f
}

var now = nostr.Now

// DerivedFollowSet projects every "p" tag value of evt.
func DerivedFollowSet(evt *nostr.Event) FollowSet {
	if evt == nil {
		return FollowSet{}
	}
	return FollowSetOf(library.GetAllTagValues(*evt, "p")...)
}

// BuildFollowEvent returns a new unsigned contact list that adds target to current, keeping
// every existing tag and the content. It returns false when target is already followed.
// current is never modified.
func BuildFollowEvent(current *nostr.Event, target library.Account) (*nostr.Event, bool) {
	var tags nostr.Tags
	content := ""
	if current != nil {
		if library.HasTag(*current, "p", target) {
			return nil, false
		}
		tags = library.CopyTags(current.Tags)
		content = current.Content
	} else {
		tags = nostr.Tags{}
	}
	tags = append(tags, nostr.Tag{"p", target})
	return &nostr.Event{
		Kind:      KindContactList,
		CreatedAt: now(),
		Tags:      tags,
		Content:   content,
	}, true
}

// Newer orders contact lists: greater created_at wins, equal timestamps go to the smaller id.
func Newer(a, b *nostr.Event) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}

// Newest reduces a multiset of relay results to the authoritative contact list of author.
// Events of another kind or author are ignored. The result does not depend on input order.
func Newest(events []nostr.Event, author library.Account) (*nostr.Event, bool) {
	var best *nostr.Event
	for i := range events {
		ev := &events[i]
		if ev.Kind != KindContactList || (author != "" && ev.PubKey != author) {
			continue
		}
		if best == nil || Newer(ev, best) {
			best = ev
		}
	}
	if best == nil {
		return nil, false
	}
	out := *best
	return &out, true
}

type Repository struct {
	relays    Querier
	endpoints []library.RelayURL
	mutex     *deadlock.Mutex
	current   *nostr.Event
	follows   FollowSet
}

func NewRepository(relays Querier, readEndpoints []library.RelayURL) *Repository {
	return &Repository{
		relays:    relays,
		endpoints: readEndpoints,
		mutex:     &deadlock.Mutex{},
		follows:   FollowSet{},
	}
}

// FetchAuthoritative asks every read relay for author's latest contact list.
func (r *Repository) FetchAuthoritative(ctx context.Context, author library.Account) (*nostr.Event, bool) {
	events := r.relays.Query(ctx, r.endpoints, nostr.Filter{
		Kinds:   []int{KindContactList},
		Authors: []string{author},
		Limit:   1,
	})
	ev, ok := Newest(events, author)
	if !ok {
		library.LogCLI(fmt.Sprintf("no contact list found for %s on %d relays", author, len(r.endpoints)), 3)
	}
	return ev, ok
}

// Refresh fetches from relays and adopts the result unless the held list is newer,
// which happens right after a publish that relays have not caught up with.
func (r *Repository) Refresh(ctx context.Context, author library.Account) bool {
	ev, ok := r.FetchAuthoritative(ctx, author)
	if !ok {
		return false
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.current != nil && !Newer(ev, r.current) {
		return false
	}
	r.current = ev
	r.follows = DerivedFollowSet(ev)
	return true
}

// Adopt makes evt authoritative. extra accounts are added to the derived set, so a
// just-confirmed follow shows even if the event was trimmed by the signer.
func (r *Repository) Adopt(evt *nostr.Event, extra ...library.Account) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	cp := *evt
	cp.Tags = library.CopyTags(evt.Tags)
	r.current = &cp
	r.follows = DerivedFollowSet(&cp)
	for _, a := range extra {
		r.follows[a] = struct{}{}
	}
}

// Restore loads a cached state without touching relays.
func (r *Repository) Restore(evt *nostr.Event, follows FollowSet) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.current = nil
	r.follows = FollowSet{}
	if evt != nil {
		cp := *evt
		cp.Tags = library.CopyTags(evt.Tags)
		r.current = &cp
		r.follows = DerivedFollowSet(&cp)
	}
	for a := range follows {
		r.follows[a] = struct{}{}
	}
}

func (r *Repository) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.current = nil
	r.follows = FollowSet{}
}

// Current returns a copy of the authoritative list, or nil.
func (r *Repository) Current() *nostr.Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.current == nil {
		return nil
	}
	cp := *r.current
	cp.Tags = library.CopyTags(r.current.Tags)
	return &cp
}

func (r *Repository) Follows() FollowSet {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return FollowSetOf(r.follows.Sorted()...)
}

func (r *Repository) IsFollowing(account library.Account) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.follows.Has(account)
}

// Package session holds per-browser-session state that must survive a round trip
// through an external signer: the identity, the cached follow set and the pending follow.
package session

import (
	"context"
	"errors"
)

const (
	KeyIdentity     = "pubkey"
	KeyContacts     = "contacts"
	KeyContactEvent = "contact_event"
	KeyPending      = "pending"
	KeyNotice       = "notice"
)

var ErrClosed = errors.New("session store is closed")

// UpdateFunc maps the current value to the next one. Returning keep=false removes the key.
type UpdateFunc func(current string, ok bool) (next string, keep bool)

// Store is a passive key-value store. Take and Update are atomic per key, so a flow that
// re-enters (a reload firing the callback twice) cannot consume or overwrite state twice.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	// Take returns the value and removes it in one step.
	Take(ctx context.Context, key string) (string, bool, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// Clear drops everything a connected session accumulates.
func Clear(ctx context.Context, s Store) error {
	return s.Remove(ctx, KeyIdentity, KeyContacts, KeyContactEvent, KeyPending)
}

// Prefixed scopes a shared store to one session. Closing the scoped view leaves the backend open.
func Prefixed(store Store, prefix string) Store {
	return &prefixed{store: store, prefix: prefix}
}

type prefixed struct {
	store  Store
	prefix string
}

func (p *prefixed) key(k string) string { return p.prefix + k }

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.store.Get(ctx, p.key(key))
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.key(key), value)
}

func (p *prefixed) Remove(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = p.key(k)
	}
	return p.store.Remove(ctx, scoped...)
}

func (p *prefixed) Take(ctx context.Context, key string) (string, bool, error) {
	return p.store.Take(ctx, p.key(key))
}

func (p *prefixed) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return p.store.Update(ctx, p.key(key), fn)
}

func (p *prefixed) Close() error { return nil }

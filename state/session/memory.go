package session

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"
)

type entry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps entries in process memory. With a ttl, entries expire that long after
// their last write, which bounds them to the session lifetime.
type MemoryStore struct {
	data   map[string]entry
	mutex  *deadlock.Mutex
	ttl    time.Duration
	now    func() time.Time
	closed bool
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]entry),
		mutex: &deadlock.Mutex{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// lookup must be called with the mutex held.
func (m *MemoryStore) lookup(key string) (string, bool) {
	e, ok := m.data[key]
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return "", false
	}
	return e.value, true
}

// put must be called with the mutex held.
func (m *MemoryStore) put(key, value string) {
	e := entry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.data[key] = e
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.lookup(key)
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.put(key, value)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, keys ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) (string, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.lookup(key)
	delete(m.data, key)
	return v, ok, nil
}

func (m *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	current, ok := m.lookup(key)
	next, keep := fn(current, ok)
	if keep {
		m.put(key, next)
	} else {
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	m.data = make(map[string]entry)
	return nil
}

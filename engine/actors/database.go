package actors

import (
	"fmt"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/state/session"
)

// OpenSessionStore opens the configured session backend.
func OpenSessionStore(s Settings) (session.Store, error) {
	switch s.SessionBackend {
	case "", "memory":
		library.LogCLI("session store: memory", 4)
		return session.NewMemoryStore(s.SessionTTL), nil
	case "redis":
		store, err := session.NewRedisStore(&session.RedisConfig{
			Address:   s.RedisAddress,
			Password:  s.RedisPassword,
			DB:        s.RedisDB,
			KeyPrefix: s.RedisKeyPrefix,
			TTL:       s.SessionTTL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown session backend %q", s.SessionBackend)
}

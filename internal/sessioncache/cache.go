// Package sessioncache caches session-id to conversation resolution so
// hot sessions skip a database read on every turn. Entries expire after
// the session timeout; a stale entry only costs one extra lookup.
package sessioncache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/kennyhq/kenny-memory/internal/model"
)

type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// New creates a cache sized for maxEntries sessions.
func New(maxEntries int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Get returns the cached conversation for a session, if present.
func (s *Cache) Get(sessionID string) (*model.Conversation, bool) {
	v, ok := s.c.Get(sessionID)
	if !ok {
		return nil, false
	}
	conv, ok := v.(*model.Conversation)
	return conv, ok
}

// Put stores the conversation under its session id until the TTL lapses.
func (s *Cache) Put(conv *model.Conversation) {
	s.c.SetWithTTL(conv.SessionID, conv, 1, s.ttl)
}

// Invalidate drops a session's entry, e.g. after its conversation is
// deactivated.
func (s *Cache) Invalidate(sessionID string) {
	s.c.Del(sessionID)
}

// Wait blocks until pending writes are applied. Intended for tests.
func (s *Cache) Wait() { s.c.Wait() }

// Close releases the cache's resources.
func (s *Cache) Close() { s.c.Close() }

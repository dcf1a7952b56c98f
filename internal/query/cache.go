package query

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type openFunc func(ctx context.Context, ep Endpoint) (*Session, error)

// sessionCache keeps the most recently used session. The lock only guards the
// pointer; exchanges serialize on the session itself, so callers of different
// endpoints never wait on each other here.
type sessionCache struct {
	current *Session
	mu      sync.Mutex
}

// get returns the cached session when its key matches ep exactly, otherwise it
// opens a new one and retires the previous session.
func (c *sessionCache) get(ctx context.Context, ep Endpoint, open openFunc) (*Session, error) {
	key := ep.Key()

	c.mu.Lock()
	if s := c.current; s != nil && s.Key() == key && !s.isClosed() {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := open(ctx, ep)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	old := c.current
	c.current = s
	c.mu.Unlock()

	if old != nil {
		log.Trace().
			Str("old", old.Key()).
			Str("new", key).
			Msg("Query session replaced")
		go retire(old)
	}

	return s, nil
}

// drop evicts s if it is still cached and closes it.
func (c *sessionCache) drop(s *Session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()

	go retire(s)
}

// peek returns the cached session without touching it.
func (c *sessionCache) peek() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

func (c *sessionCache) close() error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}

	return s.Close()
}

// retire closes a session after its in-flight exchange, if any, has completed.
func retire(s *Session) {
	if err := s.Close(); err != nil {
		log.Debug().Err(err).Str("endpoint", s.Key()).Msg("Failed to close query session")
	}
}

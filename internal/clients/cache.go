// Package clients holds the in-memory cache of live authenticated platform
// clients, keyed by session id.
package clients

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/wolfeidau/feedgate/internal/platform"
	"github.com/wolfeidau/feedgate/internal/telemetry"
)

// Cache maps session ids to live authenticated clients so requests reuse an
// established session instead of re-authenticating. Entries live for the
// process lifetime; the only eviction is failure-triggered (a rehydration
// that the platform rejects) or an explicit Evict on logout.
type Cache struct {
	factory platform.Factory
	group   singleflight.Group

	mu      sync.RWMutex
	clients map[string]platform.Client
}

// NewCache creates an empty cache backed by the given client factory.
func NewCache(factory platform.Factory) *Cache {
	return &Cache{
		factory: factory,
		clients: make(map[string]platform.Client),
	}
}

// NewClient constructs a fresh, unauthenticated client. Pure factory, no
// cache side effects.
func (c *Cache) NewClient() platform.Client {
	return c.factory()
}

// Get returns the cached client for sessionID, rehydrating one via
// login-by-session when absent. Concurrent misses for the same session id
// collapse into a single upstream login; every caller receives the same
// resulting client. A failed rehydration leaves no cache entry behind, so
// the next call gets a clean attempt.
func (c *Cache) Get(ctx context.Context, sessionID string) (platform.Client, error) {
	c.mu.RLock()
	client, ok := c.clients[sessionID]
	c.mu.RUnlock()
	if ok {
		telemetry.GetMetrics().CacheHitsTotal.Add(ctx, 1)
		return client, nil
	}

	telemetry.GetMetrics().CacheMissesTotal.Add(ctx, 1)

	v, err, shared := c.group.Do(sessionID, func() (any, error) {
		// A concurrent caller may have completed rehydration while this
		// one waited on the flight.
		c.mu.RLock()
		client, ok := c.clients[sessionID]
		c.mu.RUnlock()
		if ok {
			return client, nil
		}

		client = c.factory()
		if err := client.LoginBySessionID(ctx, sessionID); err != nil {
			c.evict(sessionID)
			return nil, err
		}

		c.mu.Lock()
		c.clients[sessionID] = client
		c.mu.Unlock()

		return client, nil
	})
	if err != nil {
		telemetry.GetMetrics().RehydrationFailuresTotal.Add(ctx, 1)
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Session rehydration failed")
		return nil, err
	}

	if shared {
		log.Debug().Str("session_id", sessionID).Msg("Rehydration shared between concurrent callers")
	}

	return v.(platform.Client), nil
}

// Set stores client under its own session id, overwriting any existing entry
// for that key.
func (c *Cache) Set(client platform.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[client.SessionID()] = client
}

// Evict removes the cached client for sessionID, reporting whether an entry
// was present.
func (c *Cache) Evict(sessionID string) bool {
	return c.evict(sessionID)
}

// Len returns the number of cached clients.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

func (c *Cache) evict(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.clients[sessionID]
	delete(c.clients, sessionID)
	return ok
}

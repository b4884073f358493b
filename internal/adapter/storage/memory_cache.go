package storage

import (
	"context"
	"sync"
	"time"

	"github.com/chopnow/storefront/internal/core/domain"
)

// MemoryCache implements CacheRepository and IdentityNotifier in process,
// for single-node development runs.
type MemoryCache struct {
	mu          sync.Mutex
	now         func() time.Time
	idempotency map[string]time.Time
	sessions    map[string]time.Time
	subscribers map[string][]chan domain.IdentityChange
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:         time.Now,
		idempotency: make(map[string]time.Time),
		sessions:    make(map[string]time.Time),
		subscribers: make(map[string][]chan domain.IdentityChange),
	}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.idempotency[key]; ok && now.Before(exp) {
		return false, nil
	}
	for k, exp := range c.idempotency {
		if !now.Before(exp) {
			delete(c.idempotency, k)
		}
	}
	c.idempotency[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.idempotency, key)
	return nil
}

func (c *MemoryCache) StoreSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.sessions[sessionID]
	return ok && c.now().Before(exp), nil
}

func (c *MemoryCache) RevokeSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}

// PublishIdentityChange never blocks; a subscriber with a full buffer misses
// the change.
func (c *MemoryCache) PublishIdentityChange(ctx context.Context, change domain.IdentityChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers[change.UserID] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (c *MemoryCache) SubscribeIdentityChanges(ctx context.Context, userID string) (<-chan domain.IdentityChange, error) {
	ch := make(chan domain.IdentityChange, identitySubscriberSize)

	c.mu.Lock()
	c.subscribers[userID] = append(c.subscribers[userID], ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subscribers[userID]
		for i, s := range subs {
			if s == ch {
				c.subscribers[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(c.subscribers[userID]) == 0 {
			delete(c.subscribers, userID)
		}
		close(ch)
	}()
	return ch, nil
}

package rbac

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a shared store read, which outlives the caller that started it.
const loadTimeout = 5 * time.Second

type cacheEntry struct {
	roles   []string
	err     error
	expires time.Time
}

// Cached fronts a Store with a short-lived per-user cache of role lookups.
// Writes through Cached invalidate the user's entry; concurrent misses for the
// same user share one store read. A read that overlaps an invalidation is
// returned to its callers but never cached.
type Cached struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	gens    map[string]uint64
	group   singleflight.Group
}

// NewCached wraps store. A non-positive ttl defaults to 30s.
func NewCached(store Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{store: store, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry), gens: make(map[string]uint64)}
}

// GetUserRoles returns roles for a user (cached). Not-found results are
// cached too so deleted users stay anonymous without a store read.
func (c *Cached) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	c.mu.Lock()
	e, ok := c.entries[userID]
	c.mu.Unlock()
	if ok && c.now().Before(e.expires) {
		return append([]string(nil), e.roles...), e.err
	}

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		c.mu.Lock()
		gen := c.gens[userID]
		c.mu.Unlock()

		// shared by every waiter, so one caller's cancellation must not fail the rest
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		roles, err := c.store.GetUserRoles(loadCtx, userID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[userID] == gen {
			c.entries[userID] = cacheEntry{roles: roles, err: err, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return roles, err
	})
	roles, _ := v.([]string)
	return append([]string(nil), roles...), err
}

// InvalidateUser drops the cached roles of userID.
func (c *Cached) InvalidateUser(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.gens[userID]++
	c.mu.Unlock()
	c.group.Forget(userID)
}

func (c *Cached) AddUser(ctx context.Context, userID string, roles []string) error {
	defer c.InvalidateUser(userID)
	return c.store.AddUser(ctx, userID, roles)
}

func (c *Cached) RemoveUser(ctx context.Context, userID string) error {
	defer c.InvalidateUser(userID)
	return c.store.RemoveUser(ctx, userID)
}

func (c *Cached) AssignRole(ctx context.Context, userID, roleName string) error {
	defer c.InvalidateUser(userID)
	return c.store.AssignRole(ctx, userID, roleName)
}

func (c *Cached) RevokeRole(ctx context.Context, userID, roleName string) error {
	defer c.InvalidateUser(userID)
	return c.store.RevokeRole(ctx, userID, roleName)
}

func (c *Cached) SetRoles(ctx context.Context, userID string, roles []string) error {
	defer c.InvalidateUser(userID)
	return c.store.SetRoles(ctx, userID, roles)
}

var _ Store = (*Cached)(nil)

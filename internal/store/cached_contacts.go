package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"safetour/internal/domain"
)

const contactsCacheKey = "contacts"

// CachedContacts serves ListContacts from a short-lived cache and drops the
// cached list on every write, so an alert never carries contacts older than
// the TTL. A list read from the store is only cached when no write landed
// while it was being read.
type CachedContacts struct {
	store *ContactStore
	cache *gocache.Cache
	ttl   time.Duration

	mu         sync.Mutex
	generation uint64
}

func NewCachedContacts(store *ContactStore, ttl time.Duration) *CachedContacts {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedContacts{store: store, cache: gocache.New(ttl, 2*ttl), ttl: ttl}
}

func (c *CachedContacts) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	if cached, ok := c.cache.Get(contactsCacheKey); ok {
		return cloneContacts(cached.([]domain.Contact)), nil
	}
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()
	contacts, err := c.store.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.generation == generation {
		c.cache.Set(contactsCacheKey, cloneContacts(contacts), c.ttl)
	}
	c.mu.Unlock()
	return contacts, nil
}

func (c *CachedContacts) Get(ctx context.Context, id uint) (domain.Contact, error) {
	return c.store.Get(ctx, id)
}

func (c *CachedContacts) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	c.Invalidate()
	defer c.Invalidate()
	return c.store.Create(ctx, contact)
}

func (c *CachedContacts) Update(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	c.Invalidate()
	defer c.Invalidate()
	return c.store.Update(ctx, contact)
}

func (c *CachedContacts) Delete(ctx context.Context, id uint) error {
	c.Invalidate()
	defer c.Invalidate()
	return c.store.Delete(ctx, id)
}

func (c *CachedContacts) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.cache.Delete(contactsCacheKey)
	c.mu.Unlock()
}

func cloneContacts(in []domain.Contact) []domain.Contact {
	return append([]domain.Contact(nil), in...)
}

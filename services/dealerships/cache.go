// Package dealerships caches dealership rows in front of the repository.
package dealerships

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
)

// Cache defaults.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

type cacheEntry struct {
	dealership models.Dealership
	insertedAt time.Time
	element    *list.Element
}

// Cache is an in-memory LRU cache with TTL for dealership rows.
// Values are copied in and out so callers may mutate what they get.
type Cache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	lru     *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewCache creates a Cache holding at most maxSize rows for ttl each.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[uuid.UUID]*cacheEntry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the cached row, or nil on a miss or expiry.
func (c *Cache) Get(id uuid.UUID) *models.Dealership {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok || c.now().Sub(entry.insertedAt) > c.ttl {
		c.misses++
		if ok {
			c.remove(id)
		}
		return nil
	}

	c.lru.MoveToFront(entry.element)
	c.hits++
	d := entry.dealership
	return &d
}

// Set stores a copy of d, evicting the least recently used row when full.
func (c *Cache) Set(d *models.Dealership) {
	if d == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[d.ID]; ok {
		entry.dealership = *d
		entry.insertedAt = c.now()
		c.lru.MoveToFront(entry.element)
		return
	}

	if c.lru.Len() >= c.maxSize {
		if back := c.lru.Back(); back != nil {
			c.remove(back.Value.(uuid.UUID))
		}
	}

	c.entries[d.ID] = &cacheEntry{
		dealership: *d,
		insertedAt: c.now(),
		element:    c.lru.PushFront(d.ID),
	}
}

// Invalidate drops one row.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

// HitRate is hits over lookups, zero before the first lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: c.lru.Len(), MaxSize: c.maxSize, Hits: c.hits, Misses: c.misses}
}

// must be called with mu held
func (c *Cache) remove(id uuid.UUID) {
	if entry, ok := c.entries[id]; ok {
		c.lru.Remove(entry.element)
		delete(c.entries, id)
	}
}

// CachedRepository reads dealerships through a Cache. Writes go to the
// underlying repository and invalidate the row.
type CachedRepository struct {
	repositories.DealershipRepository
	cache *Cache
}

// NewCachedRepository wraps repo with cache.
func NewCachedRepository(repo repositories.DealershipRepository, cache *Cache) *CachedRepository {
	return &CachedRepository{DealershipRepository: repo, cache: cache}
}

// GetByID serves from the cache, loading and storing the row on a miss.
// Lookup failures are not cached.
func (r *CachedRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dealership, error) {
	if d := r.cache.Get(id); d != nil {
		return d, nil
	}
	d, err := r.DealershipRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(d)
	return d, nil
}

// Update writes through and invalidates, whether or not the write succeeded.
func (r *CachedRepository) Update(ctx context.Context, dealership *models.Dealership) error {
	defer r.cache.Invalidate(dealership.ID)
	return r.DealershipRepository.Update(ctx, dealership)
}

// Stats reports the cache counters.
func (r *CachedRepository) Stats() CacheStats {
	return r.cache.Stats()
}

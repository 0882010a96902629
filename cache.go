package tutorapi

import (
	"encoding/json"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CacheEntry is a normalized success payload kept for later GETs.
type CacheEntry struct {
	Data      json.RawMessage
	Message   string
	ExpiresAt time.Time
}

// Cache stores normalized responses keyed by endpoint.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// CacheCondition decides whether a request may be served from and stored in the cache.
type CacheCondition func(method, endpoint string) bool

// DefaultCacheExemptions are path fragments whose data must always be live.
var DefaultCacheExemptions = []string{"/auth/", "/users/", "/staff/"}

// ExemptingCacheCondition caches GET requests whose path contains none of
// the given fragments.
func ExemptingCacheCondition(exemptions ...string) CacheCondition {
	return func(method, endpoint string) bool {
		if method != http.MethodGet {
			return false
		}
		path := endpoint
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		for _, fragment := range exemptions {
			if fragment != "" && strings.Contains(path, fragment) {
				return false
			}
		}
		return true
	}
}

// DefaultCacheCondition caches GETs outside DefaultCacheExemptions.
func DefaultCacheCondition(method, endpoint string) bool {
	return ExemptingCacheCondition(DefaultCacheExemptions...)(method, endpoint)
}

type InMemoryCache struct {
	shards    []*cacheShard
	numShards int
	now       func() time.Time
}

type cacheShard struct {
	mu    sync.Mutex
	store map[string]*CacheEntry
}

func NewInMemoryCache() *InMemoryCache {
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{
			store: make(map[string]*CacheEntry),
		}
	}
	return &InMemoryCache{
		shards:    shards,
		numShards: numShards,
		now:       time.Now,
	}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

func (c *InMemoryCache) Get(key string) (*CacheEntry, bool) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, exists := shard.store[key]
	if !exists {
		return nil, false
	}

	if !c.now().Before(entry.ExpiresAt) {
		delete(shard.store, key)
		return nil, false
	}

	return entry, true
}

func (c *InMemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry.ExpiresAt = c.now().Add(ttl)
	shard.store[key] = entry
}

func (c *InMemoryCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.store, key)
}

func (c *InMemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
}

func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		total += len(shard.store)
		shard.mu.Unlock()
	}
	return total
}

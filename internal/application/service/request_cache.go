package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache eviction policies
const (
	CachePolicyNone = "none"
	CachePolicyLRU  = "lru"
	CachePolicyTTL  = "ttl"
)

// CacheConfig selects the eviction policy of a RequestCache
type CacheConfig struct {
	Policy string
	Size   int
	TTL    time.Duration
}

// RequestCache maps thread ids to the last record read from or written to
// the ledger. It is never authoritative: misses fall through to the ledger and
// callers re-read the ledger after every remote update.
type RequestCache interface {
	// Get returns the cached record or looks it up by thread in the ledger
	Get(ctx context.Context, threadID string) (*entity.RequestRecord, error)
	Put(threadID string, rec *entity.RequestRecord)
	// Peek returns the cached record without touching the ledger
	Peek(threadID string) (*entity.RequestRecord, bool)
	Len() int
}

type cacheBackend interface {
	Get(key string) (entity.RequestRecord, bool)
	Add(key string, value entity.RequestRecord) bool
	Len() int
}

type requestCacheImpl struct {
	ledger  LedgerStore
	backend cacheBackend
}

// NewRequestCache creates a read-through cache in front of the ledger
func NewRequestCache(ledger LedgerStore, cfg CacheConfig) (RequestCache, error) {
	backend, err := newCacheBackend(cfg)
	if err != nil {
		return nil, err
	}
	return &requestCacheImpl{ledger: ledger, backend: backend}, nil
}

func newCacheBackend(cfg CacheConfig) (cacheBackend, error) {
	switch cfg.Policy {
	case "", CachePolicyNone:
		return newMapBackend(), nil
	case CachePolicyLRU:
		c, err := lru.New[string, entity.RequestRecord](cfg.Size)
		if err != nil {
			return nil, fmt.Errorf("create lru cache: %w", err)
		}
		return c, nil
	case CachePolicyTTL:
		if cfg.TTL <= 0 {
			return nil, fmt.Errorf("ttl cache requires a positive ttl, got %s", cfg.TTL)
		}
		return expirable.NewLRU[string, entity.RequestRecord](cfg.Size, nil, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", cfg.Policy)
	}
}

// Get returns a copy so callers cannot mutate cached state
func (c *requestCacheImpl) Get(ctx context.Context, threadID string) (*entity.RequestRecord, error) {
	if rec, ok := c.Peek(threadID); ok {
		return rec, nil
	}
	rec, err := c.ledger.FindByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	c.Put(threadID, rec)
	return rec, nil
}

func (c *requestCacheImpl) Put(threadID string, rec *entity.RequestRecord) {
	if threadID == "" || rec == nil {
		return
	}
	c.backend.Add(threadID, *rec)
}

func (c *requestCacheImpl) Peek(threadID string) (*entity.RequestRecord, bool) {
	rec, ok := c.backend.Get(threadID)
	if !ok {
		return nil, false
	}
	return &rec, true
}

func (c *requestCacheImpl) Len() int {
	return c.backend.Len()
}

// mapBackend never evicts; entries live for the process lifetime
type mapBackend struct {
	mu      sync.RWMutex
	entries map[string]entity.RequestRecord
}

func newMapBackend() *mapBackend {
	return &mapBackend{entries: make(map[string]entity.RequestRecord)}
}

func (m *mapBackend) Get(key string) (entity.RequestRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapBackend) Add(key string, value entity.RequestRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return false
}

func (m *mapBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

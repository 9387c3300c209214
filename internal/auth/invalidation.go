package auth

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/patrickmn/go-cache"
)

// SessionInvalidator records per-user cutoffs. A token whose issue time is
// before the user's cutoff is no longer accepted.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
	IsValid(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// MemoryInvalidator keeps cutoffs in process memory. Entries are never
// evicted and are lost on restart.
type MemoryInvalidator struct {
	mu      sync.RWMutex
	cutoffs map[string]time.Time
	now     func() time.Time
}

func NewMemoryInvalidator() *MemoryInvalidator {
	return &MemoryInvalidator{
		cutoffs: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryInvalidator) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs[userID] = m.now()
	return nil
}

func (m *MemoryInvalidator) IsValid(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	m.mu.RLock()
	cutoff, ok := m.cutoffs[userID]
	m.mu.RUnlock()
	return !ok || !issuedAt.Before(cutoff), nil
}

// CacheInvalidator keeps cutoffs in a go-cache with a TTL equal to the token
// lifetime. Once an entry expires every token issued before it has expired too.
type CacheInvalidator struct {
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewCacheInvalidator(tokenTTL time.Duration) *CacheInvalidator {
	return &CacheInvalidator{
		cache: cache.New(tokenTTL, tokenTTL),
		ttl:   tokenTTL,
		now:   time.Now,
	}
}

func (c *CacheInvalidator) Invalidate(_ context.Context, userID string) error {
	c.cache.Set(userID, c.now(), c.ttl)
	return nil
}

func (c *CacheInvalidator) IsValid(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	v, ok := c.cache.Get(userID)
	if !ok {
		return true, nil
	}
	cutoff, _ := v.(time.Time)
	return !issuedAt.Before(cutoff), nil
}

// InvalidationStore persists cutoffs so several instances share them.
type InvalidationStore interface {
	Upsert(ctx context.Context, userID string, invalidatedAt, expiresAt time.Time) error
	GetCutoff(ctx context.Context, userID string) (time.Time, bool, error)
}

// StoreInvalidator adapts an InvalidationStore. Rows expire with the token TTL.
type StoreInvalidator struct {
	store InvalidationStore
	bind  func(tx database.DBTX) InvalidationStore
	ttl   time.Duration
	now   func() time.Time
}

func NewStoreInvalidator(store InvalidationStore, tokenTTL time.Duration) *StoreInvalidator {
	return &StoreInvalidator{store: store, ttl: tokenTTL, now: time.Now}
}

// WithTxStore sets how a store is bound to a caller's transaction. Without
// it InvalidateTx falls back to the pool-bound store.
func (s *StoreInvalidator) WithTxStore(bind func(tx database.DBTX) InvalidationStore) *StoreInvalidator {
	s.bind = bind
	return s
}

func (s *StoreInvalidator) Invalidate(ctx context.Context, userID string) error {
	return s.upsert(ctx, s.store, userID)
}

// InvalidateTx records the cutoff inside tx so it commits or rolls back with
// the change that caused it
func (s *StoreInvalidator) InvalidateTx(ctx context.Context, tx database.DBTX, userID string) error {
	store := s.store
	if s.bind != nil && tx != nil {
		store = s.bind(tx)
	}
	return s.upsert(ctx, store, userID)
}

func (s *StoreInvalidator) upsert(ctx context.Context, store InvalidationStore, userID string) error {
	now := s.now()
	return store.Upsert(ctx, userID, now, now.Add(s.ttl))
}

func (s *StoreInvalidator) IsValid(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	cutoff, ok, err := s.store.GetCutoff(ctx, userID)
	if err != nil {
		return false, err
	}
	return !ok || !issuedAt.Before(cutoff), nil
}

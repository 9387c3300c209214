package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	cutoffs map[string]time.Time
	err     error
}

func (f *fakeStore) Upsert(_ context.Context, userID string, invalidatedAt, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.cutoffs == nil {
		f.cutoffs = make(map[string]time.Time)
	}
	f.cutoffs[userID] = invalidatedAt
	return nil
}

func (f *fakeStore) GetCutoff(_ context.Context, userID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	c, ok := f.cutoffs[userID]
	return c, ok, nil
}

func invalidators() map[string]func(now func() time.Time) SessionInvalidator {
	return map[string]func(now func() time.Time) SessionInvalidator{
		"memory": func(now func() time.Time) SessionInvalidator {
			m := NewMemoryInvalidator()
			m.now = now
			return m
		},
		"cache": func(now func() time.Time) SessionInvalidator {
			c := NewCacheInvalidator(time.Hour)
			c.now = now
			return c
		},
		"store": func(now func() time.Time) SessionInvalidator {
			s := NewStoreInvalidator(&fakeStore{}, time.Hour)
			s.now = now
			return s
		},
	}
}

func TestSessionInvalidator_Semantics(t *testing.T) {
	for name, build := range invalidators() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			t1 := t0.Add(10 * time.Second)
			clock := t1
			inv := build(func() time.Time { return clock })

			ok, err := inv.IsValid(ctx, "u1", t0)
			require.NoError(t, err)
			assert.True(t, ok, "no entry means valid")

			require.NoError(t, inv.Invalidate(ctx, "u1"))

			ok, _ = inv.IsValid(ctx, "u1", t0)
			assert.False(t, ok, "token issued before cutoff")

			ok, _ = inv.IsValid(ctx, "u1", t1)
			assert.True(t, ok, "token issued at cutoff")

			ok, _ = inv.IsValid(ctx, "u1", t1.Add(time.Second))
			assert.True(t, ok, "token issued after cutoff")

			ok, _ = inv.IsValid(ctx, "u2", t0)
			assert.True(t, ok, "other users unaffected")

			// A later invalidation overwrites the earlier one
			clock = t1.Add(time.Minute)
			require.NoError(t, inv.Invalidate(ctx, "u1"))
			ok, _ = inv.IsValid(ctx, "u1", t1.Add(time.Second))
			assert.False(t, ok)
		})
	}
}

func TestMemoryInvalidator_Concurrent(t *testing.T) {
	inv := NewMemoryInvalidator()
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = inv.Invalidate(ctx, "u1")
		}()
		go func() {
			defer wg.Done()
			_, _ = inv.IsValid(ctx, "u1", past)
		}()
	}
	wg.Wait()

	ok, err := inv.IsValid(ctx, "u1", past)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheInvalidator_EntryExpires(t *testing.T) {
	inv := NewCacheInvalidator(50 * time.Millisecond)
	ctx := context.Background()
	issued := time.Now().Add(-time.Second)

	require.NoError(t, inv.Invalidate(ctx, "u1"))
	ok, _ := inv.IsValid(ctx, "u1", issued)
	assert.False(t, ok)

	time.Sleep(80 * time.Millisecond)
	ok, _ = inv.IsValid(ctx, "u1", issued)
	assert.True(t, ok)
}

func TestStoreInvalidator_PropagatesErrors(t *testing.T) {
	inv := NewStoreInvalidator(&fakeStore{err: errors.New("db down")}, time.Hour)

	assert.Error(t, inv.Invalidate(context.Background(), "u1"))
	ok, err := inv.IsValid(context.Background(), "u1", time.Now())
	assert.Error(t, err)
	assert.False(t, ok)
}

type nopTx struct{ database.DBTX }

func TestStoreInvalidator_InvalidateTxUsesBoundStore(t *testing.T) {
	pool := &fakeStore{}
	txStore := &fakeStore{}
	var bound database.DBTX

	inv := NewStoreInvalidator(pool, time.Hour).WithTxStore(func(tx database.DBTX) InvalidationStore {
		bound = tx
		return txStore
	})

	tx := nopTx{}
	require.NoError(t, inv.InvalidateTx(context.Background(), tx, "user-1"))

	assert.Equal(t, tx, bound)
	_, ok, _ := txStore.GetCutoff(context.Background(), "user-1")
	assert.True(t, ok)
	_, ok, _ = pool.GetCutoff(context.Background(), "user-1")
	assert.False(t, ok)

	require.NoError(t, inv.InvalidateTx(context.Background(), nil, "user-2"))
	_, ok, _ = pool.GetCutoff(context.Background(), "user-2")
	assert.True(t, ok, "nil tx falls back to the pool store")
}

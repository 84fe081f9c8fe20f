package aicache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/service"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*entity.CacheEntry
	getErr  error
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]*entity.CacheEntry)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*entity.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.entries[key], nil
}

func (s *memoryStore) Put(_ context.Context, entry *entity.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[entry.Key] = entry
	return nil
}

type recordingLedger struct {
	mu      sync.Mutex
	entries []service.CostInput
	err     error
}

func (l *recordingLedger) Record(_ context.Context, in service.CostInput) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, in)
	return nil
}

func newTestCache(store *memoryStore, ledger *recordingLedger, ttl time.Duration, now *time.Time) *Cache {
	c := NewCache(store, ledger, func(entity.AIKind) time.Duration { return ttl })
	c.now = func() time.Time { return *now }
	return c
}

func TestCache_GetPut(t *testing.T) {
	ctx := context.Background()
	payload := map[string]string{"name": "Alice", "description": "red hair"}

	t.Run("miss then hit", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		c := newTestCache(newMemoryStore(), &recordingLedger{}, time.Hour, &now)

		got, err := c.Get(ctx, entity.AIKindAvatar, payload)
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = c.Put(ctx, entity.AIKindAvatar, payload, map[string]string{"avatarUrl": "https://img/1.png"}, decimal.RequireFromString("0.04"), Attribution{UserID: "u1"})
		require.NoError(t, err)

		got, err = c.Get(ctx, entity.AIKindAvatar, payload)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.JSONEq(t, `{"avatarUrl":"https://img/1.png"}`, string(got.Response))
		assert.Equal(t, entity.AIKindAvatar, got.Kind)
	})

	t.Run("entry expires after ttl", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		c := newTestCache(newMemoryStore(), &recordingLedger{}, time.Hour, &now)

		_, err := c.Put(ctx, entity.AIKindSummary, payload, "summary", decimal.Zero, Attribution{})
		require.NoError(t, err)

		now = now.Add(59 * time.Minute)
		got, err := c.Get(ctx, entity.AIKindSummary, payload)
		require.NoError(t, err)
		assert.NotNil(t, got)

		now = now.Add(time.Minute)
		got, err = c.Get(ctx, entity.AIKindSummary, payload)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("last writer wins", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		c := newTestCache(newMemoryStore(), &recordingLedger{}, time.Hour, &now)

		_, err := c.Put(ctx, entity.AIKindSummary, payload, "first", decimal.Zero, Attribution{})
		require.NoError(t, err)
		_, err = c.Put(ctx, entity.AIKindSummary, payload, "second", decimal.Zero, Attribution{})
		require.NoError(t, err)

		got, err := c.Get(ctx, entity.AIKindSummary, payload)
		require.NoError(t, err)
		require.NotNil(t, got)
		var text string
		require.NoError(t, json.Unmarshal(got.Response, &text))
		assert.Equal(t, "second", text)
	})

	t.Run("each put appends to ledger", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		ledger := &recordingLedger{}
		c := newTestCache(newMemoryStore(), ledger, time.Hour, &now)

		for i := 0; i < 2; i++ {
			_, err := c.Put(ctx, entity.AIKindCoverArt, payload, "url", decimal.RequireFromString("0.08"), Attribution{UserID: "u1", StoryID: "s1", Model: "dall-e-3"})
			require.NoError(t, err)
		}

		require.Len(t, ledger.entries, 2)
		first := ledger.entries[0]
		assert.Equal(t, "u1", first.UserID)
		assert.Equal(t, "s1", first.StoryID)
		assert.Equal(t, entity.AIKindCoverArt, first.Kind)
		assert.Equal(t, "dall-e-3", first.Model)
		assert.True(t, first.Cost.Equal(decimal.RequireFromString("0.08")))
		assert.Len(t, first.RequestDigest, 64)
	})

	t.Run("ledger failure does not fail put", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		c := newTestCache(newMemoryStore(), &recordingLedger{err: errors.New("ledger down")}, time.Hour, &now)

		entry, err := c.Put(ctx, entity.AIKindSummary, payload, "ok", decimal.Zero, Attribution{})
		require.NoError(t, err)
		assert.NotNil(t, entry)
	})

	t.Run("store failure still records ledger", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		store := newMemoryStore()
		store.putErr = errors.New("redis down")
		ledger := &recordingLedger{}
		c := newTestCache(store, ledger, time.Hour, &now)

		_, err := c.Put(ctx, entity.AIKindAvatar, payload, "url", decimal.RequireFromString("0.04"), Attribution{})
		assert.Error(t, err)
		assert.Len(t, ledger.entries, 1)
	})

	t.Run("store read error is returned", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		store := newMemoryStore()
		store.getErr = errors.New("redis down")
		c := newTestCache(store, &recordingLedger{}, time.Hour, &now)

		got, err := c.Get(ctx, entity.AIKindAvatar, payload)
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

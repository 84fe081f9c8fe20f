package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsageRepo struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
	calls  int
}

func newMemoryUsageRepo() *memoryUsageRepo {
	return &memoryUsageRepo{counts: make(map[string]int64)}
}

func (r *memoryUsageRepo) IncrementIfBelow(_ context.Context, userID, day string, limit int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, false, r.err
	}
	key := userID + ":" + day
	c := r.counts[key]
	if c >= limit {
		return c, false, nil
	}
	r.counts[key] = c + 1
	return c + 1, true, nil
}

func (r *memoryUsageRepo) Get(_ context.Context, userID, day string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID+":"+day], r.err
}

func newTestLimiter(repo *memoryUsageRepo, now time.Time) *DailyLimiter {
	l := NewDailyLimiter(repo)
	l.now = func() time.Time { return now }
	return l
}

func TestDailyLimiter_CheckAndIncrement(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)

	t.Run("allows up to the limit then denies", func(t *testing.T) {
		repo := newMemoryUsageRepo()
		l := newTestLimiter(repo, now)

		for i := 1; i <= 3; i++ {
			d, err := l.CheckAndIncrement(ctx, "u1", 3)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, int64(i), d.Count)
			assert.Equal(t, "2024-03-10", d.Day)
		}

		d, err := l.CheckAndIncrement(ctx, "u1", 3)
		var rle *RateLimitExceededError
		require.ErrorAs(t, err, &rle)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(3), rle.Used)
		assert.Equal(t, int64(3), rle.Limit)
		assert.Equal(t, 5*time.Hour+30*time.Minute, rle.RetryAfter)
		assert.Equal(t, int64(3), repo.counts["u1:2024-03-10"])
	})

	t.Run("zero limit denies without touching the store", func(t *testing.T) {
		repo := newMemoryUsageRepo()
		l := newTestLimiter(repo, now)

		_, err := l.CheckAndIncrement(ctx, "u1", 0)
		var rle *RateLimitExceededError
		require.ErrorAs(t, err, &rle)
		assert.Equal(t, 0, repo.calls)
	})

	t.Run("users are counted independently", func(t *testing.T) {
		repo := newMemoryUsageRepo()
		l := newTestLimiter(repo, now)

		_, err := l.CheckAndIncrement(ctx, "u1", 1)
		require.NoError(t, err)
		_, err = l.CheckAndIncrement(ctx, "u2", 1)
		require.NoError(t, err)
	})

	t.Run("new day resets the counter", func(t *testing.T) {
		repo := newMemoryUsageRepo()
		l := newTestLimiter(repo, now)

		_, err := l.CheckAndIncrement(ctx, "u1", 1)
		require.NoError(t, err)
		_, err = l.CheckAndIncrement(ctx, "u1", 1)
		require.Error(t, err)

		l.now = func() time.Time { return now.Add(6 * time.Hour) }
		d, err := l.CheckAndIncrement(ctx, "u1", 1)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-11", d.Day)
	})

	t.Run("store error is not a rate limit", func(t *testing.T) {
		repo := newMemoryUsageRepo()
		repo.err = errors.New("connection refused")
		l := newTestLimiter(repo, now)

		_, err := l.CheckAndIncrement(ctx, "u1", 5)
		require.Error(t, err)
		var rle *RateLimitExceededError
		assert.False(t, errors.As(err, &rle))
	})

	t.Run("empty user is rejected", func(t *testing.T) {
		l := newTestLimiter(newMemoryUsageRepo(), now)
		_, err := l.CheckAndIncrement(ctx, "  ", 5)
		assert.Error(t, err)
	})

	t.Run("concurrent callers never exceed the limit", func(t *testing.T) {
		repo := newMemoryUsageRepo()
		l := newTestLimiter(repo, now)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.CheckAndIncrement(ctx, "u1", 10); err == nil {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, allowed)
		assert.Equal(t, int64(10), repo.counts["u1:2024-03-10"])
	})
}

func TestDailyLimiter_Usage(t *testing.T) {
	repo := newMemoryUsageRepo()
	l := newTestLimiter(repo, time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC))

	_, err := l.CheckAndIncrement(context.Background(), "u1", 5)
	require.NoError(t, err)

	day, count, err := l.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", day)
	assert.Equal(t, int64(1), count)
}

func TestDecision_Remaining(t *testing.T) {
	assert.Equal(t, int64(2), (&Decision{Count: 3, Limit: 5}).Remaining())
	assert.Equal(t, int64(0), (&Decision{Count: 5, Limit: 5}).Remaining())
	assert.Equal(t, int64(0), (*Decision)(nil).Remaining())
}

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := NewClientFromDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))
	require.NoError(t, client.AutoMigrateStoryTables(context.Background()))
	return client
}

func TestStoryRepository(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewStoryRepository(client)

	now := time.Now().UTC()
	require.NoError(t, client.DB().Create(&entity.Story{ID: "s1", OwnerID: "u1", Title: "Voyage"}).Error)
	require.NoError(t, client.DB().Create([]*entity.Chapter{
		{ID: "c3", StoryID: "s1", SeqNum: 2, ContentText: "third"},
		{ID: "c1", StoryID: "s1", SeqNum: 1, ContentText: "first"},
		{ID: "c2", StoryID: "s1", SeqNum: 2, ContentText: "second"},
		{ID: "x1", StoryID: "other", SeqNum: 1, ContentText: "elsewhere"},
	}).Error)
	require.NoError(t, client.DB().Create([]*entity.Character{
		{ID: "ch2", StoryID: "s1", Name: "Bob", CreatedAt: now.Add(time.Minute)},
		{ID: "ch1", StoryID: "s1", Name: "Alice", CreatedAt: now},
	}).Error)

	t.Run("get story", func(t *testing.T) {
		story, err := repo.GetStory(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, story)
		assert.Equal(t, "Voyage", story.Title)
	})

	t.Run("missing story is nil", func(t *testing.T) {
		story, err := repo.GetStory(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, story)
	})

	t.Run("chapters ordered by sequence then id", func(t *testing.T) {
		refs, err := repo.ListChapters(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, refs, 3)
		assert.Equal(t, []string{"c1", "c2", "c3"}, []string{refs[0].ID, refs[1].ID, refs[2].ID})
		assert.Equal(t, "second", refs[1].Text)
		assert.Equal(t, 2, refs[1].SequenceNumber)
	})

	t.Run("characters", func(t *testing.T) {
		chars, err := repo.ListCharacters(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, chars, 2)
		assert.Equal(t, "Alice", chars[0].Name)
	})
}

func TestConsistencyReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewConsistencyReportRepository(newTestClient(t))

	first := &entity.ConsistencyReport{StoryID: "s1", Score: 80, RuleSetVersion: "2024.1", GeneratedAt: time.Now().UTC()}
	require.NoError(t, repo.Upsert(ctx, entity.NewConsistencyReportRecord(first)))

	second := &entity.ConsistencyReport{StoryID: "s1", Score: 60, RuleSetVersion: "2024.1", GeneratedAt: time.Now().UTC()}
	require.NoError(t, repo.Upsert(ctx, entity.NewConsistencyReportRecord(second)))

	other := &entity.ConsistencyReport{StoryID: "s1", ChapterID: "c1", Score: 100, GeneratedAt: time.Now().UTC()}
	require.NoError(t, repo.Upsert(ctx, entity.NewConsistencyReportRecord(other)))

	got, err := repo.GetLatest(ctx, "s1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 60, got.Score)
	require.NotNil(t, got.Report)
	assert.Equal(t, 60, got.Report.Score)

	scoped, err := repo.GetLatest(ctx, "s1", "c1")
	require.NoError(t, err)
	require.NotNil(t, scoped)
	assert.Equal(t, 100, scoped.Score)

	missing, err := repo.GetLatest(ctx, "s2", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCostLedgerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCostLedgerRepository(newTestClient(t))

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	a := entity.NewCostLedgerEntry("u1", "s1", entity.AIKindAvatar, decimal.RequireFromString("0.25"))
	a.CreatedAt = day.Add(2 * time.Hour)
	b := entity.NewCostLedgerEntry("u1", "", entity.AIKindEnhance, decimal.RequireFromString("0.5"))
	b.CreatedAt = day.Add(23 * time.Hour)
	yesterday := entity.NewCostLedgerEntry("u1", "", entity.AIKindEnhance, decimal.RequireFromString("1"))
	yesterday.CreatedAt = day.Add(-time.Hour)
	someoneElse := entity.NewCostLedgerEntry("u2", "", entity.AIKindEnhance, decimal.RequireFromString("2"))
	someoneElse.CreatedAt = day.Add(time.Hour)

	for _, e := range []*entity.CostLedgerEntry{a, b, yesterday, someoneElse} {
		require.NoError(t, repo.Create(ctx, e))
	}

	total, err := repo.SumByUser(ctx, "u1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.75")), total.String())

	empty, err := repo.SumByUser(ctx, "u3", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestUsageRepository(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewUsageRepository(client, NewTransactor(client))

	t.Run("increments until limit without drift", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, allowed, err := repo.IncrementIfBelow(ctx, "u1", "2024-03-10", 3)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, i, count)
		}

		count, allowed, err := repo.IncrementIfBelow(ctx, "u1", "2024-03-10", 3)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, int64(3), count)

		stored, err := repo.Get(ctx, "u1", "2024-03-10")
		require.NoError(t, err)
		assert.Equal(t, int64(3), stored)
	})

	t.Run("new day starts at zero", func(t *testing.T) {
		stored, err := repo.Get(ctx, "u1", "2024-03-11")
		require.NoError(t, err)
		assert.Zero(t, stored)

		count, allowed, err := repo.IncrementIfBelow(ctx, "u1", "2024-03-11", 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(1), count)
	})

	t.Run("zero limit never writes", func(t *testing.T) {
		count, allowed, err := repo.IncrementIfBelow(ctx, "u2", "2024-03-10", 0)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Zero(t, count)

		var n int64
		require.NoError(t, client.DB().Model(&entity.UsageRecord{}).Where("user_id = ?", "u2").Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("joins an outer transaction", func(t *testing.T) {
		tx := NewTransactor(client)
		err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			_, _, err := repo.IncrementIfBelow(ctx, "u3", "2024-03-10", 5)
			return err
		})
		require.NoError(t, err)

		stored, err := repo.Get(ctx, "u3", "2024-03-10")
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored)
	})
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(&config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "storyloom"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=storyloom sslmode=disable TimeZone=UTC", dsn)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, parseLogLevel("silent"))
	assert.Equal(t, logger.Info, parseLogLevel(" INFO "))
	assert.Equal(t, logger.Warn, parseLogLevel(""))
}

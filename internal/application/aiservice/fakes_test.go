package aiservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/application/aicache"
	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/application/safety"
	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/service"
)

type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string]*entity.CacheEntry
	getErr  error
	putErr  error
	puts    int
}

func (r *memCacheRepo) Get(_ context.Context, key string) (*entity.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.entries[key], nil
}

func (r *memCacheRepo) Put(_ context.Context, e *entity.CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts++
	if r.putErr != nil {
		return r.putErr
	}
	r.entries[e.Key] = e
	return nil
}

type memUsageRepo struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (r *memUsageRepo) IncrementIfBelow(_ context.Context, userID, day string, limit int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, false, r.err
	}
	k := userID + ":" + day
	if r.counts[k] >= limit {
		return r.counts[k], false, nil
	}
	r.counts[k]++
	return r.counts[k], true, nil
}

func (r *memUsageRepo) Get(_ context.Context, userID, day string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID+":"+day], r.err
}

func (r *memUsageRepo) total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.counts {
		n += c
	}
	return n
}

type stubClassifier struct {
	verdict string
	calls   int
}

func (c *stubClassifier) Classify(context.Context, string) (string, error) {
	c.calls++
	return c.verdict, nil
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

func (l *recordingLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type fixedPricing struct{}

func (fixedPricing) Cost(kind entity.AIKind, promptTokens, completionTokens int) decimal.Decimal {
	if kind == entity.AIKindAvatar || kind == entity.AIKindCoverArt {
		return decimal.RequireFromString("0.04")
	}
	return decimal.NewFromInt(int64(promptTokens + completionTokens)).Div(decimal.NewFromInt(1000))
}

func (fixedPricing) EstimateTokens(text string) int {
	return len(text) / 4
}

type stubText struct {
	text   string
	err    error
	calls  int
	before func(ctx context.Context)
}

func (g *stubText) GenerateText(ctx context.Context, req service.TextRequest) (*service.TextResult, error) {
	g.calls++
	if g.before != nil {
		g.before(ctx)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &service.TextResult{Text: g.text, Provider: "openai", Model: "gpt-4o-mini", PromptTokens: 100, CompletionTokens: 50}, nil
}

// blockingText 阻塞直到 ctx 结束
type blockingText struct{}

func (blockingText) GenerateText(ctx context.Context, _ service.TextRequest) (*service.TextResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubImages struct {
	result *service.ImageResult
	err    error
	calls  int
}

func (g *stubImages) GenerateImage(context.Context, service.ImageRequest) (*service.ImageResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type stubImageStore struct {
	keys []string
	err  error
}

func (s *stubImageStore) Save(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type memStories struct {
	stories    map[string]*entity.Story
	chapters   map[string][]entity.ChapterRef
	characters map[string][]*entity.Character
	err        error
}

func (m *memStories) GetStory(_ context.Context, id string) (*entity.Story, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stories[id], nil
}

func (m *memStories) ListChapters(_ context.Context, id string) ([]entity.ChapterRef, error) {
	return m.chapters[id], nil
}

func (m *memStories) ListCharacters(_ context.Context, id string) ([]*entity.Character, error) {
	return m.characters[id], nil
}

type memReports struct {
	mu      sync.Mutex
	records map[string]*entity.ConsistencyReportRecord
	upserts int
	err     error
}

func (m *memReports) Upsert(_ context.Context, rec *entity.ConsistencyReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.err != nil {
		return m.err
	}
	m.records[rec.StoryID+"/"+rec.ChapterID] = rec
	return nil
}

func (m *memReports) GetLatest(_ context.Context, storyID, chapterID string) (*entity.ConsistencyReportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[storyID+"/"+chapterID], nil
}

type memLedgerRepo struct {
	total decimal.Decimal
}

func (m *memLedgerRepo) Create(context.Context, *entity.CostLedgerEntry) error { return nil }

func (m *memLedgerRepo) SumByUser(context.Context, string, time.Time, time.Time) (decimal.Decimal, error) {
	return m.total, nil
}

type harness struct {
	svc        *Service
	cacheRepo  *memCacheRepo
	usage      *memUsageRepo
	classifier *stubClassifier
	ledger     *recordingLedger
	text       *stubText
	images     *stubImages
	store      *stubImageStore
	stories    *memStories
	reports    *memReports
	cfg        *config.Config
}

func newHarness() *harness {
	h := &harness{
		cacheRepo:  &memCacheRepo{entries: make(map[string]*entity.CacheEntry)},
		usage:      &memUsageRepo{counts: make(map[string]int64)},
		classifier: &stubClassifier{verdict: "SAFE"},
		ledger:     &recordingLedger{},
		text:       &stubText{text: "polished text"},
		images:     &stubImages{result: &service.ImageResult{URL: "https://provider/img.png", Model: "dall-e-3"}},
		stories: &memStories{
			stories: map[string]*entity.Story{"s1": {ID: "s1", Title: "The Voyage"}},
			chapters: map[string][]entity.ChapterRef{"s1": {
				{ID: "c2", StoryID: "s1", SequenceNumber: 2, Text: "Alice was scared. Bob laughed."},
				{ID: "c1", StoryID: "s1", SequenceNumber: 1, Text: "Alice felt happy and met Bob."},
			}},
			characters: map[string][]*entity.Character{"s1": {
				{ID: "a", StoryID: "s1", Name: "Alice", CanonicalDescription: "brave sailor"},
				{ID: "b", StoryID: "s1", Name: "Bob", CanonicalDescription: "cheerful cook"},
			}},
		},
		reports: &memReports{records: make(map[string]*entity.ConsistencyReportRecord)},
		cfg:     &config.Config{},
	}
	h.cfg.AI.Quota = config.AIQuotaConfig{DefaultLimit: 10, Limits: map[string]int{}}
	h.cfg.AI.Timeouts = config.AITimeoutsConfig{Safety: time.Second, Generation: time.Second, Image: time.Second, Bookkeeping: time.Second}
	h.build()
	return h
}

func (h *harness) build() {
	h.svc = NewService(Dependencies{
		Cache:    aicache.NewCache(h.cacheRepo, h.ledger, nil),
		Limiter:  quota.NewDailyLimiter(h.usage),
		Safety:   safety.NewGate(h.classifier, h.cfg.AI.Timeouts.Safety),
		Pricing:  fixedPricing{},
		Stories:  h.stories,
		Reports:  h.reports,
		Ledger:   &memLedgerRepo{total: decimal.RequireFromString("0.12")},
		Recorder: h.ledger,
		Text:     h.text,
		Images:   h.images,
	}, h.cfg)
}

func (h *harness) withStore(store *stubImageStore) {
	h.store = store
	h.build()
	h.svc.store = store
}

var errBoom = errors.New("boom")

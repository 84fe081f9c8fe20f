package aiservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"storyloom-ai-api/internal/application/consistency"
	"storyloom-ai-api/internal/domain/entity"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/metrics"
)

// storySnapshot 一次分析使用的不可变快照
type storySnapshot struct {
	story      *entity.Story
	chapters   []entity.ChapterRef
	characters []*entity.Character
}

// consistencyPayload 缓存键输入
// Snapshot 为章节与角色全文的摘要，内容编辑后键自然变化
type consistencyPayload struct {
	StoryID        string `json:"story_id"`
	ChapterID      string `json:"chapter_id,omitempty"`
	RuleSetVersion string `json:"rule_set_version"`
	Snapshot       string `json:"snapshot"`
}

// Consistency 执行一致性分析
func (s *Service) Consistency(ctx context.Context, in ConsistencyInput) (*ConsistencyResult, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if action == "" {
		action = ActionCheck
	}
	switch action {
	case ActionAnalyze, ActionCheck, ActionUpdate:
	default:
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown action %q", in.Action))
	}
	storyID := strings.TrimSpace(in.StoryID)
	if storyID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("story_id is required")
	}
	chapterID := strings.TrimSpace(in.ChapterID)
	ctx = logger.WithContext(ctx, logger.StoryIDKey, storyID)

	snap, err := s.loadSnapshot(ctx, storyID)
	if err != nil {
		return nil, err
	}

	chapters, err := chapterWindow(snap.chapters, chapterID)
	if err != nil {
		return nil, err
	}

	provisional := action == ActionCheck && strings.TrimSpace(in.CheckNewContent) != ""
	if provisional {
		chapters = append(chapters, entity.ChapterRef{
			ID:             pendingChapterID,
			StoryID:        storyID,
			SequenceNumber: nextSequence(chapters),
			Text:           in.CheckNewContent,
		})
	}

	kind := entity.AIKindConsistency
	if action != ActionCheck {
		kind = entity.AIKindNarrativeAnalysis
	}

	digest, err := snapshotDigest(chapters, snap.characters)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}

	j := &job[*entity.ConsistencyReport]{
		kind:    kind,
		userID:  in.UserID,
		storyID: storyID,
		payload: consistencyPayload{
			StoryID:        storyID,
			ChapterID:      chapterID,
			RuleSetVersion: consistency.RuleSetVersion,
			Snapshot:       digest,
		},
		skipCacheRead: action == ActionUpdate,
		compute: func(ctx context.Context) (*entity.ConsistencyReport, *usage, error) {
			report := consistency.Analyze(consistency.Input{
				StoryID:    storyID,
				ChapterID:  chapterID,
				Characters: snap.characters,
				Chapters:   chapters,
				Now:        s.now(),
			})
			metrics.ConsistencyScore.Observe(float64(report.Score))
			return report, nil, nil
		},
	}
	if !provisional && s.reports != nil {
		j.persist = func(ctx context.Context, report *entity.ConsistencyReport) error {
			return s.reports.Upsert(ctx, entity.NewConsistencyReportRecord(report))
		}
	}

	report, cached, err := execute(ctx, s, j)
	if err != nil {
		return nil, err
	}
	return &ConsistencyResult{Report: report, Cached: cached}, nil
}

// ConsistencyReport 获取最近一次持久化的报告
func (s *Service) ConsistencyReport(ctx context.Context, storyID, chapterID string) (*entity.ConsistencyReport, error) {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("story_id is required")
	}
	if s.reports == nil {
		return nil, apperrors.ErrReportNotFound
	}
	rec, err := s.reports.GetLatest(ctx, storyID, strings.TrimSpace(chapterID))
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	if rec == nil || rec.Report == nil {
		return nil, apperrors.ErrReportNotFound
	}
	return rec.Report, nil
}

// loadSnapshot 并发读取故事、章节与角色
func (s *Service) loadSnapshot(ctx context.Context, storyID string) (*storySnapshot, error) {
	snap := &storySnapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		story, err := s.stories.GetStory(gctx, storyID)
		if err != nil {
			return fmt.Errorf("failed to get story: %w", err)
		}
		snap.story = story
		return nil
	})
	g.Go(func() error {
		chapters, err := s.stories.ListChapters(gctx, storyID)
		if err != nil {
			return fmt.Errorf("failed to list chapters: %w", err)
		}
		snap.chapters = chapters
		return nil
	})
	g.Go(func() error {
		characters, err := s.stories.ListCharacters(gctx, storyID)
		if err != nil {
			return fmt.Errorf("failed to list characters: %w", err)
		}
		snap.characters = characters
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error(ctx, "failed to load story snapshot", err)
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	if snap.story == nil {
		return nil, apperrors.ErrStoryNotFound
	}
	snap.chapters = consistency.SortChapters(snap.chapters)
	return snap, nil
}

// chapterWindow 截取到指定章节（含）为止的章节，chapterID 为空返回全部
func chapterWindow(chapters []entity.ChapterRef, chapterID string) ([]entity.ChapterRef, error) {
	if chapterID == "" {
		return append([]entity.ChapterRef(nil), chapters...), nil
	}
	limit := -1
	for _, ch := range chapters {
		if ch.ID == chapterID {
			limit = ch.SequenceNumber
			break
		}
	}
	if limit < 0 {
		return nil, apperrors.ErrChapterNotFound
	}
	out := make([]entity.ChapterRef, 0, len(chapters))
	for _, ch := range chapters {
		if ch.SequenceNumber <= limit {
			out = append(out, ch)
		}
	}
	return out, nil
}

func nextSequence(chapters []entity.ChapterRef) int {
	max := 0
	for _, ch := range chapters {
		if ch.SequenceNumber > max {
			max = ch.SequenceNumber
		}
	}
	return max + 1
}

// snapshotDigest 对参与分析的全文取摘要
func snapshotDigest(chapters []entity.ChapterRef, characters []*entity.Character) (string, error) {
	type chapterPart struct {
		ID   string `json:"id"`
		Seq  int    `json:"seq"`
		Text string `json:"text"`
	}
	type characterPart struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	parts := struct {
		Chapters   []chapterPart   `json:"chapters"`
		Characters []characterPart `json:"characters"`
	}{}
	for _, ch := range consistency.SortChapters(chapters) {
		parts.Chapters = append(parts.Chapters, chapterPart{ID: ch.ID, Seq: ch.SequenceNumber, Text: ch.Text})
	}
	for _, c := range consistency.SortCharacters(characters) {
		parts.Characters = append(parts.Characters, characterPart{ID: c.ID, Name: c.Name, Description: c.CanonicalDescription})
	}

	raw, err := json.Marshal(parts)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

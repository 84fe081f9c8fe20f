package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/internal/application/aiservice"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/interfaces/http/dto"
	"storyloom-ai-api/pkg/logger"
)

// AIService AI 能力门面
type AIService interface {
	Consistency(ctx context.Context, in aiservice.ConsistencyInput) (*aiservice.ConsistencyResult, error)
	ConsistencyReport(ctx context.Context, storyID, chapterID string) (*entity.ConsistencyReport, error)
	Enhance(ctx context.Context, in aiservice.EnhanceInput) (*aiservice.EnhanceResult, error)
	Avatar(ctx context.Context, in aiservice.AvatarInput) (*aiservice.ImageResult, error)
	CoverArt(ctx context.Context, in aiservice.CoverArtInput) (*aiservice.ImageResult, error)
	Summary(ctx context.Context, in aiservice.SummaryInput) (*aiservice.SummaryResult, error)
	StyleTransfer(ctx context.Context, in aiservice.StyleTransferInput) (*aiservice.StyleTransferResult, error)
	Usage(ctx context.Context, userID string) (*aiservice.UsageResult, error)
}

// AIHandler AI 能力处理器
type AIHandler struct {
	svc AIService
}

// NewAIHandler 创建 AI 处理器
func NewAIHandler(svc AIService) *AIHandler {
	return &AIHandler{svc: svc}
}

// Consistency 角色一致性分析
// @Summary 角色一致性分析
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.ConsistencyRequest true "分析参数"
// @Success 200 {object} dto.Response[entity.ConsistencyReport]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /consistency [post]
func (h *AIHandler) Consistency(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ConsistencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.StoryIDKey, req.StoryID)
	res, err := h.svc.Consistency(ctx, req.ToInput(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res.Report, res.Cached)
}

// ConsistencyReport 获取最近一次持久化的一致性报告
// @Summary 最近一致性报告
// @Tags AI
// @Produce json
// @Param story_id query string true "故事 ID"
// @Param chapter_id query string false "章节 ID"
// @Success 200 {object} dto.Response[entity.ConsistencyReport]
// @Failure 404 {object} dto.ErrorResponse
// @Router /consistency/report [get]
func (h *AIHandler) ConsistencyReport(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var q dto.ConsistencyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	report, err := h.svc.ConsistencyReport(c.Request.Context(), q.StoryID, q.ChapterID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, report, false)
}

// Enhance 文本润色（不缓存）
// @Summary 文本润色
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.EnhanceRequest true "待润色内容"
// @Success 200 {object} aiservice.EnhanceResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /enhance [post]
func (h *AIHandler) Enhance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.EnhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Enhance(c.Request.Context(), req.ToInput(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Avatar 生成角色头像
// @Summary 生成角色头像
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.AvatarRequest true "头像描述"
// @Success 200 {object} dto.Response[aiservice.ImageResult]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /avatar [post]
func (h *AIHandler) Avatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Avatar(c.Request.Context(), req.ToInput(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res, res.Cached)
}

// CoverArt 生成封面
// @Summary 生成封面
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.CoverArtRequest true "封面描述"
// @Success 200 {object} dto.Response[aiservice.ImageResult]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /cover-art [post]
func (h *AIHandler) CoverArt(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CoverArtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.CoverArt(c.Request.Context(), req.ToInput(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res, res.Cached)
}

// Summary 故事摘要
// @Router /summary [post]
func (h *AIHandler) Summary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.StoryIDKey, req.StoryID)
	res, err := h.svc.Summary(ctx, req.ToInput(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res, res.Cached)
}

// StyleTransfer 文风转换
// @Router /style-transfer [post]
func (h *AIHandler) StyleTransfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.StyleTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.StyleTransfer(c.Request.Context(), req.ToInput(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res, res.Cached)
}

// Usage 当日 AI 用量
// @Router /usage [get]
func (h *AIHandler) Usage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	res, err := h.svc.Usage(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res, false)
}

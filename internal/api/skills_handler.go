package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/resources"
	"jobgenie/internal/skills"
	"jobgenie/internal/tasks"
)

const maxPrewarmSkills = 50

// ResourceFinder 返回技能学习资源，*resources.Cache 满足该接口。
type ResourceFinder interface {
	Get(ctx context.Context, skill string, limit int) []resources.Resource
}

// SkillsHandler 负责学习进度与学习资源。
type SkillsHandler struct {
	progress  *skills.Store
	resources ResourceFinder
	queue     tasks.Enqueuer
	logger    *slog.Logger
}

// NewSkillsHandler 构造技能处理器。
func NewSkillsHandler(progress *skills.Store, finder ResourceFinder, queue tasks.Enqueuer, logger *slog.Logger) *SkillsHandler {
	return &SkillsHandler{progress: progress, resources: finder, queue: queue, logger: logger}
}

// ListProgress 返回全部技能进度。
func (h *SkillsHandler) ListProgress(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	items, err := h.progress.List(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("list skill progress failed", slog.Any("error", err))
		Internal(c, "failed to list progress")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type recordRequest struct {
	Skill string `json:"skill" binding:"required"`
	skills.Record
}

// RecordProgress 记录一次学习，首次接触时创建进度。
func (h *SkillsHandler) RecordProgress(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "skill is required")
		return
	}
	p, err := h.progress.Record(c.Request.Context(), userID, req.Skill, req.Record)
	if errors.Is(err, skills.ErrInvalidInput) {
		BadRequest(c, "progress, increment or resource is required")
		return
	}
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("record skill progress failed", slog.Any("error", err))
		Internal(c, "failed to record progress")
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProgress 删除一条技能进度。
func (h *SkillsHandler) DeleteProgress(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		BadRequest(c, "invalid id")
		return
	}
	err := h.progress.Delete(c.Request.Context(), userID, id)
	switch {
	case errors.Is(err, skills.ErrNotFound):
		NotFound(c, "progress not found")
	case err != nil:
		middleware.LoggerOr(c, h.logger).Error("delete skill progress failed", slog.Any("error", err))
		Internal(c, "failed to delete progress")
	default:
		c.Status(http.StatusNoContent)
	}
}

// Resources 返回技能的视频教程。缓存层保证不会失败，最坏情况是空列表。
func (h *SkillsHandler) Resources(c *gin.Context) {
	skill := strings.TrimSpace(c.Query("skill"))
	if skill == "" {
		BadRequest(c, "skill is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 || limit > 25 {
		BadRequest(c, "limit must be between 1 and 25")
		return
	}
	items := h.resources.Get(c.Request.Context(), skill, limit)
	c.JSON(http.StatusOK, gin.H{"skill": skill, "items": items})
}

type prewarmRequest struct {
	Skills []string `json:"skills" binding:"required,min=1"`
}

// Prewarm 异步预热一组技能的资源缓存。
func (h *SkillsHandler) Prewarm(c *gin.Context) {
	var req prewarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "skills are required")
		return
	}
	if len(req.Skills) > maxPrewarmSkills {
		BadRequest(c, "too many skills")
		return
	}
	task, err := tasks.NewResourcePrewarmTask(tasks.ResourcePrewarmPayload{
		Skills:        req.Skills,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		Internal(c, "failed to build task")
		return
	}
	if _, err := h.queue.EnqueueContext(c.Request.Context(), task); err != nil {
		middleware.LoggerOr(c, h.logger).Error("enqueue prewarm failed", slog.Any("error", err))
		Internal(c, "failed to schedule prewarm")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": len(req.Skills)})
}

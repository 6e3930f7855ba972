package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/jobs"
)

// JobSearcher 查询外部职位源，*jobs.AdzunaClient 满足该接口。
type JobSearcher interface {
	Search(ctx context.Context, q jobs.Query) (jobs.SearchResult, error)
}

// JobsHandler 负责职位搜索与收藏跟踪。
type JobsHandler struct {
	search JobSearcher
	saved  *jobs.Store
	logger *slog.Logger
}

// NewJobsHandler 构造职位处理器。
func NewJobsHandler(search JobSearcher, saved *jobs.Store, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{search: search, saved: saved, logger: logger}
}

// Search 按关键词与地点搜索职位。
func (h *JobsHandler) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "0"))
	res, err := h.search.Search(c.Request.Context(), jobs.Query{
		What:    c.Query("what"),
		Where:   c.Query("where"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("job search failed", slog.Any("error", err))
		BadGateway(c, "job search is unavailable")
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListSaved 返回收藏的职位，可按 status 过滤。
func (h *JobsHandler) ListSaved(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var filter jobs.Status
	if raw := c.Query("status"); raw != "" {
		st, err := jobs.ParseStatus(raw)
		if err != nil {
			BadRequest(c, "invalid status")
			return
		}
		filter = st
	}
	items, err := h.saved.List(c.Request.Context(), userID, filter)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("list saved jobs failed", slog.Any("error", err))
		Internal(c, "failed to list saved jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Save 收藏一个职位，重复收藏返回已有记录。
func (h *JobsHandler) Save(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req jobs.Listing
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid job payload")
		return
	}
	job, err := h.saved.Save(c.Request.Context(), userID, req)
	if errors.Is(err, jobs.ErrTitleRequired) {
		BadRequest(c, "title is required")
		return
	}
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("save job failed", slog.Any("error", err))
		Internal(c, "failed to save job")
		return
	}
	c.JSON(http.StatusCreated, job)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 更新投递状态。
func (h *JobsHandler) UpdateStatus(c *gin.Context) {
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
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "status is required")
		return
	}
	job, err := h.saved.UpdateStatus(c.Request.Context(), userID, id, req.Status)
	switch {
	case errors.Is(err, jobs.ErrInvalidStatus):
		BadRequest(c, "invalid status")
	case errors.Is(err, jobs.ErrNotFound):
		NotFound(c, "saved job not found")
	case err != nil:
		middleware.LoggerOr(c, h.logger).Error("update job status failed", slog.Any("error", err))
		Internal(c, "failed to update job")
	default:
		c.JSON(http.StatusOK, job)
	}
}

// Delete 取消收藏。
func (h *JobsHandler) Delete(c *gin.Context) {
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
	err := h.saved.Delete(c.Request.Context(), userID, id)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		NotFound(c, "saved job not found")
	case err != nil:
		middleware.LoggerOr(c, h.logger).Error("delete saved job failed", slog.Any("error", err))
		Internal(c, "failed to delete job")
	default:
		c.Status(http.StatusNoContent)
	}
}

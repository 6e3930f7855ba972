package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/linkedin"
	"jobgenie/internal/llm"
)

// LinkedInHandler 提供 LinkedIn 资料优化建议。
type LinkedInHandler struct {
	optimizer *linkedin.Optimizer
	logger    *slog.Logger
}

// NewLinkedInHandler 构造处理器。
func NewLinkedInHandler(optimizer *linkedin.Optimizer, logger *slog.Logger) *LinkedInHandler {
	return &LinkedInHandler{optimizer: optimizer, logger: logger}
}

type optimizeRequest struct {
	linkedin.Sections
	TargetRole string `json:"targetRole"`
}

// Optimize 返回改写后的标题、简介、技能与逐条建议。
func (h *LinkedInHandler) Optimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid profile payload")
		return
	}
	res, err := h.optimizer.Optimize(c.Request.Context(), req.Sections, req.TargetRole)
	switch {
	case errors.Is(err, linkedin.ErrEmptyProfile):
		BadRequest(c, "at least one profile section is required")
	case errors.Is(err, llm.ErrMalformedResponse):
		middleware.LoggerOr(c, h.logger).Warn("linkedin optimize failed", slog.Any("error", err))
		MalformedAIResponse(c)
	case err != nil:
		middleware.LoggerOr(c, h.logger).Error("linkedin optimize failed", slog.Any("error", err))
		BadGateway(c, "ai provider is unavailable")
	default:
		c.JSON(http.StatusOK, res)
	}
}

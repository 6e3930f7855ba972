package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
)

// CacheClearer 清空学习资源缓存，*resources.Cache 满足该接口。
type CacheClearer interface {
	Clear(ctx context.Context) (int, error)
}

// InternalHandler 提供运维接口，路由需挂在 InternalSecretMiddleware 之后。
type InternalHandler struct {
	cache  CacheClearer
	logger *slog.Logger
}

// NewInternalHandler 构造运维处理器。
func NewInternalHandler(cache CacheClearer, logger *slog.Logger) *InternalHandler {
	return &InternalHandler{cache: cache, logger: logger}
}

// ClearResourceCache 删除全部学习资源缓存，其它键不受影响。
func (h *InternalHandler) ClearResourceCache(c *gin.Context) {
	log := middleware.LoggerOr(c, h.logger)
	n, err := h.cache.Clear(c.Request.Context())
	if err != nil {
		log.Error("clear resource cache failed", slog.Int("deleted", n), slog.Any("error", err))
		Internal(c, "failed to clear cache")
		return
	}
	log.Info("resource cache cleared", slog.Int("deleted", n))
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/billing"
)

const maxWebhookBytes = 1 << 20

// BillingHandler 负责订阅结账、客户门户与 Stripe webhook。
type BillingHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

// NewBillingHandler 构造处理器。
func NewBillingHandler(svc *billing.Service, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: svc, logger: logger}
}

// Summary 返回订阅状态与额度。
func (h *BillingHandler) Summary(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	sum, err := h.billing.Summary(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("billing summary failed", slog.Any("error", err))
		Internal(c, "failed to load subscription")
		return
	}
	c.JSON(http.StatusOK, sum)
}

type checkoutRequest struct {
	PriceID string `json:"priceId" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
}

// Checkout 创建结账会话并返回跳转地址。
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "priceId is required")
		return
	}
	email := req.Email
	if email == "" {
		email = userEmailFromContext(c)
	}

	url, err := h.billing.Checkout(c.Request.Context(), userID, email, req.PriceID)
	if errors.Is(err, billing.ErrUnknownPrice) {
		BadRequest(c, "unknown price")
		return
	}
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("create checkout failed", slog.Any("error", err))
		BadGateway(c, "payment provider is unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Portal 返回客户门户地址。
func (h *BillingHandler) Portal(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	url, err := h.billing.Portal(c.Request.Context(), userID)
	if errors.Is(err, billing.ErrNoCustomer) {
		NotFound(c, "no billing account")
		return
	}
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("create portal session failed", slog.Any("error", err))
		BadGateway(c, "payment provider is unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook 接收 Stripe 事件，签名无效时返回 400 让 Stripe 停止重试。
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		BadRequest(c, "unreadable body")
		return
	}
	err = h.billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, billing.ErrInvalidEvent) {
		middleware.LoggerOr(c, h.logger).Warn("rejected stripe webhook", slog.Any("error", err))
		BadRequest(c, "invalid event")
		return
	}
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("handle stripe webhook failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/database"
	"jobgenie/internal/documents"
	"jobgenie/internal/jobs"
	"jobgenie/internal/llm"
	"jobgenie/internal/quota"
)

// AllowanceReader 查询剩余生成额度，*quota.Gate 满足该接口。
type AllowanceReader interface {
	Allowance(ctx context.Context, userID uint, docType string) (quota.Allowance, error)
}

// DocumentsHandler 负责文档生成、编辑与导出。
type DocumentsHandler struct {
	docs   *documents.Service
	quota  AllowanceReader
	logger *slog.Logger
}

// NewDocumentsHandler 构造文档处理器。
func NewDocumentsHandler(docs *documents.Service, allowance AllowanceReader, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{docs: docs, quota: allowance, logger: logger}
}

// Generate 调用模型生成简历或求职信，超出额度时返回 402。
func (h *DocumentsHandler) Generate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req documents.GenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid generate payload")
		return
	}

	doc, err := h.docs.Generate(c.Request.Context(), userID, req)
	if errors.Is(err, quota.ErrLimitReached) {
		a, aerr := h.quota.Allowance(c.Request.Context(), userID, req.Type)
		if aerr != nil {
			a = quota.Allowance{DocType: req.Type}
		}
		PaymentRequired(c, a)
		return
	}
	if err != nil {
		h.fail(c, "generate document", err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// List 返回文档摘要，可按 type 过滤。
func (h *DocumentsHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	items, err := h.docs.List(c.Request.Context(), userID, c.Query("type"))
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get 返回完整文档。
func (h *DocumentsHandler) Get(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, "get document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Update 保存手动修改。携带 version 时启用乐观锁。
func (h *DocumentsHandler) Update(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	var req documents.Changes
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid document payload")
		return
	}
	doc, err := h.docs.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		h.fail(c, "update document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Delete 删除文档。
func (h *DocumentsHandler) Delete(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.docs.Delete(c.Request.Context(), userID, id); err != nil {
		h.fail(c, "delete document", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Chat 对话式修改文档。
func (h *DocumentsHandler) Chat(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	var req documents.ChatInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid chat payload")
		return
	}
	res, err := h.docs.Chat(c.Request.Context(), userID, id, req)
	if err != nil {
		h.fail(c, "chat edit", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RequestExport 将 PDF 导出任务入队，完成后通过 websocket 通知。
func (h *DocumentsHandler) RequestExport(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	correlationID := middleware.GetCorrelationID(c)
	doc, err := h.docs.RequestExport(c.Request.Context(), userID, id, correlationID)
	if err != nil {
		h.fail(c, "request export", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"document":      doc,
		"correlationId": correlationID,
	})
}

// ExportLink 返回已导出 PDF 的限时下载地址。
func (h *DocumentsHandler) ExportLink(c *gin.Context) {
	userID, id, ok := h.target(c)
	if !ok {
		return
	}
	url, err := h.docs.ExportLink(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, "export link", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Usage 返回两类文档在本周期的额度。
func (h *DocumentsHandler) Usage(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	items := make([]quota.Allowance, 0, 2)
	for _, docType := range []string{database.DocumentTypeResume, database.DocumentTypeCoverLetter} {
		a, err := h.quota.Allowance(c.Request.Context(), userID, docType)
		if err != nil {
			h.fail(c, "load usage", err)
			return
		}
		items = append(items, a)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *DocumentsHandler) target(c *gin.Context) (uint, uint, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return 0, 0, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		BadRequest(c, "invalid id")
		return 0, 0, false
	}
	return userID, id, true
}

func (h *DocumentsHandler) fail(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		NotFound(c, "document not found")
	case errors.Is(err, jobs.ErrNotFound):
		NotFound(c, "saved job not found")
	case errors.Is(err, documents.ErrInvalidType), errors.Is(err, quota.ErrUnknownDocType):
		BadRequest(c, "type must be resume or cover_letter")
	case errors.Is(err, documents.ErrEmptyContent):
		BadRequest(c, "content must not be empty")
	case errors.Is(err, documents.ErrVersionConflict):
		Conflict(c, "document was modified, reload and try again")
	case errors.Is(err, documents.ErrExportNotReady):
		Conflict(c, "export not ready")
	case errors.Is(err, llm.ErrMalformedResponse):
		middleware.LoggerOr(c, h.logger).Warn(action+" failed", slog.Any("error", err))
		MalformedAIResponse(c)
	case errors.Is(err, llm.ErrEmptyResponse):
		middleware.LoggerOr(c, h.logger).Warn(action+" failed", slog.Any("error", err))
		BadGateway(c, "ai provider returned no content")
	default:
		middleware.LoggerOr(c, h.logger).Error(action+" failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}

// Package worker 消费 asynq 后台任务：文档 PDF 导出与学习资源预热。
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"jobgenie/internal/auth"
	"jobgenie/internal/database"
	"jobgenie/internal/documents"
	"jobgenie/internal/errcode"
	"jobgenie/internal/pdf"
	"jobgenie/internal/storage"
	"jobgenie/internal/tasks"
)

// DocumentSource 是导出任务对文档表的依赖，*documents.Store 满足该接口。
type DocumentSource interface {
	GetByID(ctx context.Context, id uint) (*database.Document, error)
	MarkExported(ctx context.Context, id uint, version int, objectKey string) error
	MarkExportFailed(ctx context.Context, id uint) error
}

// PageRenderer 把整页 HTML 渲染为 PDF。
type PageRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Uploader 是对象存储的写入接口，*storage.Client 满足该接口。
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// ExportTaskHandler 负责消费文档导出任务。
type ExportTaskHandler struct {
	docs      DocumentSource
	renderer  PageRenderer
	objects   Uploader
	publisher auth.Publisher
	logger    *slog.Logger

	finalAttempt func(ctx context.Context) bool
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(
	docs DocumentSource,
	renderer PageRenderer,
	objects Uploader,
	publisher auth.Publisher,
	logger *slog.Logger,
) *ExportTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportTaskHandler{
		docs:         docs,
		renderer:     renderer,
		objects:      objects,
		publisher:    publisher,
		logger:       logger,
		finalAttempt: isFinalAsynqAttempt,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.DocumentExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("document_id", int(payload.DocumentID)),
	)
	log.Info("starting document export")

	doc, err := h.docs.GetByID(ctx, payload.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			log.Warn("document not found, skipping task")
			return nil
		}
		log.Error("query document failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(doc.UserID)))
	if doc.Version != payload.Version {
		log.Info("document changed since export was requested",
			slog.Int("requested_version", payload.Version),
			slog.Int("current_version", doc.Version),
		)
	}

	defer func() {
		if retErr == nil || !h.finalAttempt(ctx) {
			return
		}
		bg := context.WithoutCancel(ctx)
		if err := h.docs.MarkExportFailed(bg, doc.ID); err != nil {
			log.Error("mark export failed", slog.Any("error", err))
		}
		notify := ExportNotifyMessage{
			Status:        "error",
			DocumentID:    doc.ID,
			Version:       doc.Version,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotify(bg, h.publisher, doc.UserID, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	page, err := pdf.BuildPage(doc.Title, doc.Content)
	if err != nil {
		log.Error("build export page failed", slog.Any("error", err))
		return err
	}

	data, err := h.renderer.Render(ctx, page)
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	key := storage.ExportKey(doc.UserID, doc.ID, doc.Version)
	if err := h.objects.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	if err := h.docs.MarkExported(ctx, doc.ID, doc.Version, key); err != nil {
		if !errors.Is(err, documents.ErrVersionConflict) {
			log.Error("update document failed", slog.Any("error", err))
			return err
		}
		// 渲染期间文档被修改，这份 PDF 已过期，不能标记为新版本的导出结果。
		log.Info("document edited during export, pdf discarded", slog.Int("rendered_version", doc.Version))
		stale := ExportNotifyMessage{
			Status:        "error",
			DocumentID:    doc.ID,
			Version:       doc.Version,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.DocumentChanged,
			ErrorMessage:  "document changed during export",
		}
		if err := publishNotify(ctx, h.publisher, doc.UserID, stale); err != nil {
			log.Error("publish redis notification failed", slog.Any("error", err))
		}
		return nil
	}

	notify := ExportNotifyMessage{
		Status:        "completed",
		DocumentID:    doc.ID,
		Version:       doc.Version,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	// PDF 已落库，通知失败只记录日志，不触发重试。
	if err := publishNotify(ctx, h.publisher, doc.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
	}

	log.Info("document export completed", slog.String("object_key", key), slog.Int("bytes", len(data)))
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

// Package documents 负责 AI 生成简历与求职信、对话式修改以及 PDF 导出。
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"

	"jobgenie/internal/database"
	"jobgenie/internal/jobs"
	"jobgenie/internal/llm"
	"jobgenie/internal/metrics"
	"jobgenie/internal/profile"
	"jobgenie/internal/quota"
	"jobgenie/internal/storage"
	"jobgenie/internal/tasks"
)

const (
	exportLinkTTL  = 15 * time.Minute
	maxChatHistory = 12
)

// QuotaGate 占用与归还生成额度。
type QuotaGate interface {
	Reserve(ctx context.Context, userID uint, docType string) (quota.Reservation, error)
	Release(ctx context.Context, r quota.Reservation) error
}

// ProfileReader 读取生成所需的用户资料。
type ProfileReader interface {
	Get(ctx context.Context, userID uint) (*profile.Profile, error)
}

// JobReader 读取用户收藏的职位。
type JobReader interface {
	Get(ctx context.Context, userID, id uint) (jobs.SavedJob, error)
}

// ObjectStore 提供导出文件的下载链接与清理。
type ObjectStore interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration, filename string) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// GenerateInput 描述一次生成请求。SavedJobID 与 Job 二选一，均为空时生成通用文档。
type GenerateInput struct {
	Type         string     `json:"type"`
	SavedJobID   *uint      `json:"savedJobId"`
	Job          JobContext `json:"job"`
	Instructions string     `json:"instructions"`
}

// ChatTurn 是对话中的一条消息。
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput 描述一次对话式修改。Apply 为 false 时只返回预览。
type ChatInput struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history"`
	Apply   bool       `json:"apply"`
	Version *int       `json:"version"`
}

// ChatResult 是模型的回复与修改后的正文。
type ChatResult struct {
	Reply    string    `json:"reply"`
	HTML     string    `json:"html"`
	Applied  bool      `json:"applied"`
	Document *Document `json:"document,omitempty"`
}

// Service 串联额度、资料、模型与存储。
type Service struct {
	store    *Store
	gate     QuotaGate
	profiles ProfileReader
	jobs     JobReader
	llm      llm.Client
	queue    tasks.Enqueuer
	objects  ObjectStore
	logger   *slog.Logger
}

// NewService 创建文档服务。
func NewService(
	store *Store,
	gate QuotaGate,
	profiles ProfileReader,
	jobReader JobReader,
	client llm.Client,
	queue tasks.Enqueuer,
	objects ObjectStore,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		gate:     gate,
		profiles: profiles,
		jobs:     jobReader,
		llm:      client,
		queue:    queue,
		objects:  objects,
		logger:   logger,
	}
}

// Generate 先占用额度再调用模型，任何失败都会归还额度。
func (s *Service) Generate(ctx context.Context, userID uint, in GenerateInput) (_ *Document, retErr error) {
	if !quota.ValidDocType(in.Type) {
		return nil, ErrInvalidType
	}

	reservation, err := s.gate.Reserve(ctx, userID, in.Type)
	if err != nil {
		if errors.Is(err, quota.ErrLimitReached) {
			metrics.DocumentGenerated(in.Type, "quota_exceeded")
		}
		return nil, err
	}
	defer func() {
		if retErr == nil {
			metrics.DocumentGenerated(in.Type, "ok")
			return
		}
		outcome := "error"
		if errors.Is(retErr, llm.ErrMalformedResponse) {
			outcome = "malformed"
		}
		metrics.DocumentGenerated(in.Type, outcome)
		if err := s.gate.Release(context.WithoutCancel(ctx), reservation); err != nil {
			s.logger.Error("release quota failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("doc_type", in.Type),
				slog.Any("error", err),
			)
		}
	}()

	prof, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		prof = &profile.Profile{UserID: userID}
	}

	job := in.Job
	if in.SavedJobID != nil {
		saved, err := s.jobs.Get(ctx, userID, *in.SavedJobID)
		if err != nil {
			return nil, err
		}
		job = JobContext{Title: saved.Title, Company: saved.Company, Location: saved.Location, Description: saved.Description}
	}

	prompt, err := renderGeneratePrompt(generatePrompt{
		Type:         in.Type,
		Kind:         kindOf(in.Type),
		DefaultTitle: defaultTitle(in.Type, job),
		Profile:      *prof,
		Experience:   prof.Experience.Text(),
		Job:          job,
		Instructions: strings.TrimSpace(in.Instructions),
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.llm.Generate(ctx, prompt, llm.Options{JSON: true})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", in.Type, err)
	}
	var out struct {
		Title string `json:"title"`
		HTML  string `json:"html"`
	}
	if err := llm.DecodeJSON(raw, generateSchema, &out); err != nil {
		return nil, err
	}
	content := Sanitize(out.HTML)
	if PlainText(content) == "" {
		return nil, fmt.Errorf("%w: document has no text", llm.ErrMalformedResponse)
	}

	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = HeadingTitle(content)
	}
	if title == "" {
		title = defaultTitle(in.Type, job)
	}

	row := &database.Document{
		UserID:     userID,
		Title:      truncateRunes(title, 255),
		Type:       in.Type,
		Content:    content,
		SavedJobID: in.SavedJobID,
	}
	if err := s.store.Create(ctx, row); err != nil {
		return nil, err
	}
	doc := toView(row, true)
	return &doc, nil
}

// Chat 根据用户消息修改文档。Apply 为 true 时保存并递增版本，不消耗生成额度。
func (s *Service) Chat(ctx context.Context, userID, id uint, in ChatInput) (*ChatResult, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: message is required", ErrEmptyContent)
	}
	row, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	history := slice.FilterMap(in.History, func(_ int, t ChatTurn) (ChatTurn, bool) {
		t.Content = strings.TrimSpace(t.Content)
		return t, t.Content != "" && (t.Role == "user" || t.Role == "assistant")
	})
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}

	prompt, err := renderChatPrompt(chatPrompt{
		Kind:    kindOf(row.Type),
		Content: row.Content,
		History: history,
		Message: msg,
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.llm.Generate(ctx, prompt, llm.Options{JSON: true})
	if err != nil {
		return nil, fmt.Errorf("chat edit: %w", err)
	}
	var out struct {
		Reply string `json:"reply"`
		HTML  string `json:"html"`
	}
	if err := llm.DecodeJSON(raw, chatSchema, &out); err != nil {
		return nil, err
	}

	result := &ChatResult{Reply: strings.TrimSpace(out.Reply), HTML: Sanitize(out.HTML)}
	if PlainText(result.HTML) == "" {
		result.HTML = row.Content
	}
	if !in.Apply || result.HTML == row.Content {
		return result, nil
	}

	version := in.Version
	if version == nil {
		version = &row.Version
	}
	updated, err := s.store.Update(ctx, userID, id, Changes{Content: &result.HTML, Version: version})
	if err != nil {
		return nil, err
	}
	doc := toView(updated, true)
	result.Applied = true
	result.Document = &doc
	return result, nil
}

// List 返回文档摘要。
func (s *Service) List(ctx context.Context, userID uint, docType string) ([]Document, error) {
	if docType != "" && !quota.ValidDocType(docType) {
		return nil, ErrInvalidType
	}
	rows, err := s.store.List(ctx, userID, docType)
	if err != nil {
		return nil, err
	}
	return slice.Map(rows, func(_ int, r database.Document) Document { return toView(&r, false) }), nil
}

// Get 返回完整文档。
func (s *Service) Get(ctx context.Context, userID, id uint) (*Document, error) {
	row, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	doc := toView(row, true)
	return &doc, nil
}

// Update 修改标题或正文。提供版本号时版本不一致返回 ErrVersionConflict，否则最后写入生效。
func (s *Service) Update(ctx context.Context, userID, id uint, c Changes) (*Document, error) {
	if c.Title != nil {
		t := truncateRunes(strings.TrimSpace(*c.Title), 255)
		if t == "" {
			return nil, fmt.Errorf("%w: title is empty", ErrEmptyContent)
		}
		c.Title = &t
	}
	if c.Content != nil {
		html := Sanitize(*c.Content)
		if PlainText(html) == "" {
			return nil, ErrEmptyContent
		}
		c.Content = &html
	}
	if c.Title == nil && c.Content == nil {
		return s.Get(ctx, userID, id)
	}

	row, err := s.store.Update(ctx, userID, id, c)
	if err != nil {
		return nil, err
	}
	doc := toView(row, true)
	return &doc, nil
}

// Delete 删除文档并清理已导出的 PDF。
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	row, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if s.objects != nil {
		if err := s.objects.DeletePrefix(ctx, storage.ExportPrefix(row.UserID, row.ID)); err != nil {
			s.logger.Warn("cleanup exported pdf failed", slog.Uint64("document_id", uint64(id)), slog.Any("error", err))
		}
	}
	return nil
}

// RequestExport 将导出任务入队，结果通过 websocket 通知。
func (s *Service) RequestExport(ctx context.Context, userID, id uint, correlationID string) (*Document, error) {
	row, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	task, err := tasks.NewDocumentExportTask(tasks.DocumentExportPayload{
		DocumentID:    row.ID,
		UserID:        userID,
		Version:       row.Version,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("build export task: %w", err)
	}
	if err := s.store.MarkExportPending(ctx, row.ID); err != nil {
		return nil, err
	}
	if _, err := s.queue.EnqueueContext(ctx, task); err != nil {
		_ = s.store.MarkExportFailed(context.WithoutCancel(ctx), row.ID)
		return nil, fmt.Errorf("enqueue export task: %w", err)
	}
	row.ExportStatus = database.ExportStatusPending
	doc := toView(row, false)
	return &doc, nil
}

// ExportLink 返回最近一次导出 PDF 的限时下载链接。
func (s *Service) ExportLink(ctx context.Context, userID, id uint) (string, error) {
	row, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if row.ExportStatus != database.ExportStatusCompleted || row.PdfObjectKey == "" {
		return "", ErrExportNotReady
	}
	return s.objects.PresignedURL(ctx, row.PdfObjectKey, exportLinkTTL, FileName(row.Title))
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._]+`)

// FileName turns a document title into a download file name.
func FileName(title string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(title), "-"), "-.")
	if name == "" {
		name = "document"
	}
	return truncateRunes(name, 80) + ".pdf"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

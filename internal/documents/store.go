package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"jobgenie/internal/database"
)

var (
	// ErrNotFound 表示文档不存在或不属于当前用户。
	ErrNotFound = errors.New("documents: not found")
	// ErrVersionConflict 表示调用方提供的版本号已过期。
	ErrVersionConflict = errors.New("documents: version conflict")
	// ErrInvalidType 表示文档类型不受支持。
	ErrInvalidType = errors.New("documents: invalid type")
	// ErrExportNotReady 表示文档还没有可下载的 PDF。
	ErrExportNotReady = errors.New("documents: export not ready")
	// ErrEmptyContent 表示更新后的正文为空。
	ErrEmptyContent = errors.New("documents: empty content")
)

// Document 是对外暴露的文档视图。
type Document struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Content      string    `json:"content,omitempty"`
	Excerpt      string    `json:"excerpt,omitempty"`
	SavedJobID   *uint     `json:"savedJobId,omitempty"`
	Version      int       `json:"version"`
	ExportStatus string    `json:"exportStatus,omitempty"`
	HasPDF       bool      `json:"hasPdf"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	PdfObjectKey string `json:"-"`
	UserID       uint   `json:"-"`
}

// Changes 描述一次正文或标题修改。Version 非 nil 时启用乐观锁。
type Changes struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Version *int    `json:"version"`
}

// Store 负责 documents 表的读写，worker 与 API 共用。
type Store struct {
	db *gorm.DB
}

// NewStore 创建文档存储。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create 插入新文档。
func (s *Store) Create(ctx context.Context, doc *database.Document) error {
	if doc.Version == 0 {
		doc.Version = 1
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Get 读取单个文档。
func (s *Store) Get(ctx context.Context, userID, id uint) (*database.Document, error) {
	return s.find(s.db.WithContext(ctx), userID, id)
}

// GetByID 不校验归属，仅供后台任务使用。
func (s *Store) GetByID(ctx context.Context, id uint) (*database.Document, error) {
	var row database.Document
	err := s.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return &row, nil
}

// List 返回用户的文档，可按类型过滤，最近更新在前。
func (s *Store) List(ctx context.Context, userID uint, docType string) ([]database.Document, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if docType != "" {
		q = q.Where("type = ?", docType)
	}
	var rows []database.Document
	if err := q.Order("updated_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return rows, nil
}

// Update 应用修改并将版本号加一。提供 Version 时，仅当库中版本一致才写入。
func (s *Store) Update(ctx context.Context, userID, id uint, c Changes) (*database.Document, error) {
	var out *database.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.find(tx, userID, id)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"version": gorm.Expr("version + 1"),
		}
		if c.Title != nil {
			updates["title"] = *c.Title
		}
		if c.Content != nil {
			updates["content"] = *c.Content
			updates["export_status"] = ""
		}

		q := tx.Model(&database.Document{}).Where("id = ? AND user_id = ?", id, userID)
		if c.Version != nil {
			if *c.Version != current.Version {
				return ErrVersionConflict
			}
			q = q.Where("version = ?", *c.Version)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		out, err = s.find(tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete 删除文档。
func (s *Store) Delete(ctx context.Context, userID, id uint) (*database.Document, error) {
	var out *database.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(row).Error; err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		out = row
		return nil
	})
	return out, err
}

// MarkExportPending 标记导出排队中。
func (s *Store) MarkExportPending(ctx context.Context, id uint) error {
	return s.setExport(ctx, id, map[string]any{"export_status": database.ExportStatusPending})
}

// MarkExported 记录导出完成的对象键。仅当库中仍是被渲染的 version 时写入，
// 否则返回 ErrVersionConflict。
func (s *Store) MarkExported(ctx context.Context, id uint, version int, objectKey string) error {
	res := s.db.WithContext(ctx).Model(&database.Document{}).
		Where("id = ? AND version = ?", id, version).
		UpdateColumns(map[string]any{
			"export_status":  database.ExportStatusCompleted,
			"pdf_object_key": objectKey,
		})
	if res.Error != nil {
		return fmt.Errorf("update export status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// MarkExportFailed 标记导出失败。
func (s *Store) MarkExportFailed(ctx context.Context, id uint) error {
	return s.setExport(ctx, id, map[string]any{"export_status": database.ExportStatusFailed})
}

// setExport 不触碰 updated_at 与 version，导出状态不算内容修改。
func (s *Store) setExport(ctx context.Context, id uint, updates map[string]any) error {
	err := s.db.WithContext(ctx).Model(&database.Document{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
	if err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

func (s *Store) find(db *gorm.DB, userID, id uint) (*database.Document, error) {
	var row database.Document
	err := db.Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return &row, nil
}

func toView(row *database.Document, full bool) Document {
	d := Document{
		ID:           row.ID,
		Title:        row.Title,
		Type:         row.Type,
		SavedJobID:   row.SavedJobID,
		Version:      row.Version,
		ExportStatus: row.ExportStatus,
		HasPDF:       row.PdfObjectKey != "" && row.ExportStatus == database.ExportStatusCompleted,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		PdfObjectKey: row.PdfObjectKey,
		UserID:       row.UserID,
	}
	if full {
		d.Content = row.Content
	} else {
		d.Excerpt = Excerpt(row.Content)
	}
	return d
}

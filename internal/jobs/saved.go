package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobgenie/internal/database"
)

// ErrNotFound 表示该用户下不存在此收藏职位。
var ErrNotFound = errors.New("jobs: saved job not found")

// ErrTitleRequired 表示收藏的职位缺少标题。
var ErrTitleRequired = errors.New("jobs: title is required")

// SavedJob 是收藏职位的 API 视图。
type SavedJob struct {
	ID          uint      `json:"id"`
	Source      string    `json:"source"`
	ExternalID  string    `json:"externalId"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Salary      string    `json:"salary"`
	URL         string    `json:"url"`
	Status      Status    `json:"status"`
	SavedAt     time.Time `json:"savedAt"`
}

// Store 持久化收藏职位。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 创建收藏职位存储。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// List 按时间倒序返回收藏职位，status 为空时返回全部。
func (s *Store) List(ctx context.Context, userID uint, filter Status) ([]SavedJob, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter != "" {
		q = q.Where("status = ?", string(filter))
	}
	var rows []database.SavedJob
	if err := q.Order("saved_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list saved jobs: %w", err)
	}
	out := make([]SavedJob, 0, len(rows))
	for i := range rows {
		out = append(out, toView(&rows[i]))
	}
	return out, nil
}

// Get 返回单个收藏职位。
func (s *Store) Get(ctx context.Context, userID, id uint) (SavedJob, error) {
	row, err := s.find(s.db.WithContext(ctx), userID, id)
	if err != nil {
		return SavedJob{}, err
	}
	return toView(row), nil
}

// Save 收藏职位。同一来源和外部 ID 重复收藏时原样返回已有记录。
func (s *Store) Save(ctx context.Context, userID uint, l Listing) (SavedJob, error) {
	if strings.TrimSpace(l.Title) == "" {
		return SavedJob{}, ErrTitleRequired
	}
	if l.Source == "" {
		l.Source = "manual"
	}
	if l.ExternalID == "" {
		l.ExternalID = fmt.Sprintf("%s|%s|%s", strings.ToLower(l.Title), strings.ToLower(l.Company), l.URL)
	}

	row := database.SavedJob{
		UserID:      userID,
		Source:      l.Source,
		ExternalID:  l.ExternalID,
		Title:       l.Title,
		Company:     l.Company,
		Description: l.Description,
		Location:    l.Location,
		Salary:      l.Salary,
		URL:         l.URL,
		Status:      string(StatusSaved),
		SavedAt:     s.now().UTC(),
	}
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return SavedJob{}, fmt.Errorf("save job: %w", err)
	}

	var stored database.SavedJob
	err := db.Where("user_id = ? AND source = ? AND external_id = ?", userID, l.Source, l.ExternalID).
		Take(&stored).Error
	if err != nil {
		return SavedJob{}, fmt.Errorf("load saved job: %w", err)
	}
	return toView(&stored), nil
}

// UpdateStatus 更新投递进度。
func (s *Store) UpdateStatus(ctx context.Context, userID, id uint, status string) (SavedJob, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return SavedJob{}, err
	}
	db := s.db.WithContext(ctx)
	row, err := s.find(db, userID, id)
	if err != nil {
		return SavedJob{}, err
	}
	if err := db.Model(row).Update("status", string(st)).Error; err != nil {
		return SavedJob{}, fmt.Errorf("update job status: %w", err)
	}
	row.Status = string(st)
	return toView(row), nil
}

// Delete 删除收藏职位。
func (s *Store) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&database.SavedJob{})
	if res.Error != nil {
		return fmt.Errorf("delete saved job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) find(db *gorm.DB, userID, id uint) (*database.SavedJob, error) {
	var row database.SavedJob
	err := db.Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load saved job: %w", err)
	}
	return &row, nil
}

func toView(r *database.SavedJob) SavedJob {
	return SavedJob{
		ID:          r.ID,
		Source:      r.Source,
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Company:     r.Company,
		Description: r.Description,
		Location:    r.Location,
		Salary:      r.Salary,
		URL:         r.URL,
		Status:      Status(r.Status),
		SavedAt:     r.SavedAt,
	}
}

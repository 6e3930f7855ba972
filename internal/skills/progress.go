// Package skills 记录用户在各项技能上的学习进度。
package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"jobgenie/internal/database"
)

// 进度上下限。
const (
	MinProgress = 0
	MaxProgress = 100
)

var (
	// ErrInvalidInput 表示请求既没有进度、增量也没有资源，或技能名为空。
	ErrInvalidInput = errors.New("skills: invalid progress input")
	// ErrNotFound 表示进度记录不存在。
	ErrNotFound = errors.New("skills: progress not found")
)

// Progress 是对外暴露的进度视图。
type Progress struct {
	ID          uint       `json:"id"`
	SkillName   string     `json:"skillName"`
	Progress    int        `json:"progress"`
	Resources   []string   `json:"resources"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Record 描述一次学习行为。Progress 为绝对值，Increment 为相对值，二选一。
// Resource 是本次消费的资源地址，可为空。
type Record struct {
	Progress  *int   `json:"progress"`
	Increment *int   `json:"increment"`
	Resource  string `json:"resource"`
}

// Store 读写 skill_progresses 表。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 创建进度存储。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// List 返回用户全部技能进度，按最近更新排序。
func (s *Store) List(ctx context.Context, userID uint) ([]Progress, error) {
	var rows []database.SkillProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list skill progress: %w", err)
	}
	out := make([]Progress, 0, len(rows))
	for i := range rows {
		out = append(out, toView(&rows[i]))
	}
	return out, nil
}

// Record 首次记录时创建进度，进度钳制在 0..100，达到 100 时写入完成时间。
func (s *Store) Record(ctx context.Context, userID uint, skill string, r Record) (Progress, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" || (r.Progress == nil && r.Increment == nil && r.Resource == "") {
		return Progress{}, ErrInvalidInput
	}

	var out database.SkillProgress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row database.SkillProgress
		err := tx.Where("user_id = ? AND LOWER(skill_name) = ?", userID, strings.ToLower(skill)).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = database.SkillProgress{UserID: userID, SkillName: skill}
		case err != nil:
			return fmt.Errorf("load skill progress: %w", err)
		}

		next := row.Progress
		if r.Progress != nil {
			next = *r.Progress
		}
		if r.Increment != nil {
			next += *r.Increment
		}
		row.Progress = clamp(next)

		if res := strings.TrimSpace(r.Resource); res != "" && !contains(row.Resources, res) {
			row.Resources = append(row.Resources, res)
		}

		switch {
		case row.Progress >= MaxProgress && row.CompletedAt == nil:
			done := s.now().UTC()
			row.CompletedAt = &done
		case row.Progress < MaxProgress:
			row.CompletedAt = nil
		}

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save skill progress: %w", err)
		}
		out = row
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return toView(&out), nil
}

// Delete 删除一项技能进度。
func (s *Store) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&database.SkillProgress{})
	if res.Error != nil {
		return fmt.Errorf("delete skill progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AllSkillNames 返回所有用户正在学习的技能名，用于缓存预热。
func (s *Store) AllSkillNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&database.SkillProgress{}).
		Where("progress < ?", MaxProgress).
		Distinct("skill_name").Order("skill_name").Pluck("skill_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list skill names: %w", err)
	}
	return names, nil
}

func clamp(v int) int {
	return max(MinProgress, min(MaxProgress, v))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func toView(r *database.SkillProgress) Progress {
	resources := []string(r.Resources)
	if resources == nil {
		resources = []string{}
	}
	return Progress{
		ID:          r.ID,
		SkillName:   r.SkillName,
		Progress:    r.Progress,
		Resources:   resources,
		Completed:   r.CompletedAt != nil,
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 文档类型。
const (
	DocumentTypeResume      = "resume"
	DocumentTypeCoverLetter = "cover_letter"
)

// 导出状态。
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
}

// Profile 保存用户在引导流程与设置页中填写的资料。
// Experience 只能通过 profile 包的编解码函数读写。
type Profile struct {
	gorm.Model
	UserID          uint                        `gorm:"uniqueIndex"`
	FullName        string                      `gorm:"size:255"`
	Location        string                      `gorm:"size:255"`
	JobType         string                      `gorm:"size:64"`
	Skills          datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Interests       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Goals           datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Experience      datatypes.JSON              `gorm:"type:jsonb"`
	AvatarObjectKey string                      `gorm:"size:512"`
	Onboarded       bool                        `gorm:"default:false"`
}

// Document 表示 AI 生成的简历或求职信。
type Document struct {
	gorm.Model
	UserID       uint   `gorm:"index"`
	Title        string `gorm:"size:255"`
	Type         string `gorm:"size:32;index"`
	Content      string `gorm:"type:text"`
	SavedJobID   *uint  `gorm:"index"`
	Version      int    `gorm:"not null;default:1"`
	ExportStatus string `gorm:"size:32"`
	PdfObjectKey string `gorm:"size:512"`
}

// SavedJob 表示用户收藏并跟踪的职位。
type SavedJob struct {
	gorm.Model
	UserID      uint   `gorm:"uniqueIndex:idx_saved_job_owner_source"`
	Source      string `gorm:"size:64;uniqueIndex:idx_saved_job_owner_source"`
	ExternalID  string `gorm:"size:255;uniqueIndex:idx_saved_job_owner_source"`
	Title       string `gorm:"size:255"`
	Company     string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	Location    string `gorm:"size:255"`
	Salary      string `gorm:"size:128"`
	URL         string `gorm:"size:1024"`
	Status      string `gorm:"size:32"`
	SavedAt     time.Time
}

// SkillProgress 记录用户在某项技能上的学习进度。
type SkillProgress struct {
	gorm.Model
	UserID      uint                        `gorm:"uniqueIndex:idx_skill_progress_owner_skill"`
	SkillName   string                      `gorm:"size:128;uniqueIndex:idx_skill_progress_owner_skill"`
	Progress    int                         `gorm:"not null;default:0"`
	Resources   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CompletedAt *time.Time
}

// Subscription 表示用户的付费计划，由 Stripe webhook 维护。
type Subscription struct {
	gorm.Model
	UserID               uint   `gorm:"uniqueIndex"`
	Plan                 string `gorm:"size:32"`
	Status               string `gorm:"size:32"`
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAt             *time.Time
	StripeCustomerID     string `gorm:"size:128;index"`
	StripeSubscriptionID string `gorm:"size:128;index"`
}

// DocumentUsage 统计某个计费周期内生成的文档数量，是配额判断的唯一依据。
type DocumentUsage struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"uniqueIndex:idx_usage_owner_period_type"`
	PeriodStart    time.Time `gorm:"uniqueIndex:idx_usage_owner_period_type"`
	DocType        string    `gorm:"size:32;uniqueIndex:idx_usage_owner_period_type"`
	GeneratedCount int       `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

// AllModels 返回需要迁移的全部模型。
func AllModels() []any {
	return []any{
		&User{},
		&Profile{},
		&Document{},
		&SavedJob{},
		&SkillProgress{},
		&Subscription{},
		&DocumentUsage{},
	}
}

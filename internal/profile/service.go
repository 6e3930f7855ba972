// Package profile 管理用户资料与引导流程状态。
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"gorm.io/gorm"

	"jobgenie/internal/database"
)

// Profile 是对外暴露的资料视图。
type Profile struct {
	UserID     uint       `json:"userId"`
	FullName   string     `json:"fullName"`
	Location   string     `json:"location"`
	JobType    string     `json:"jobType"`
	Skills     []string   `json:"skills"`
	Interests  []string   `json:"interests"`
	Goals      []string   `json:"goals"`
	Experience Experience `json:"experience"`
	HasAvatar  bool       `json:"hasAvatar"`
	Onboarded  bool       `json:"onboarded"`
	UpdatedAt  time.Time  `json:"updatedAt"`

	AvatarObjectKey string `json:"-"`
}

// Update 只包含调用方提供的字段，nil 表示保持不变。
type Update struct {
	FullName   *string     `json:"fullName"`
	Location   *string     `json:"location"`
	JobType    *string     `json:"jobType"`
	Skills     *[]string   `json:"skills"`
	Interests  *[]string   `json:"interests"`
	Goals      *[]string   `json:"goals"`
	Experience *Experience `json:"experience"`
}

// Service 读写 profiles 表。
type Service struct {
	db *gorm.DB
}

// NewService 创建资料服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Get 返回用户资料，不存在时返回 nil, nil。
func (s *Service) Get(ctx context.Context, userID uint) (*Profile, error) {
	row, err := s.load(s.db.WithContext(ctx), userID)
	if err != nil || row == nil {
		return nil, err
	}
	return toView(row)
}

// Upsert 合并部分更新，资料不存在时创建。
func (s *Service) Upsert(ctx context.Context, userID uint, u Update) (*Profile, error) {
	var out *database.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, userID)
		if err != nil {
			return err
		}
		if row == nil {
			row = &database.Profile{UserID: userID}
		}
		if err := apply(row, u); err != nil {
			return err
		}
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toView(out)
}

// CompleteOnboarding 标记引导流程已完成，可同时写入最后一步的资料。
func (s *Service) CompleteOnboarding(ctx context.Context, userID uint, u Update) (*Profile, error) {
	var out *database.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx, userID)
		if err != nil {
			return err
		}
		if row == nil {
			row = &database.Profile{UserID: userID}
		}
		if err := apply(row, u); err != nil {
			return err
		}
		row.Onboarded = true
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("complete onboarding: %w", err)
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toView(out)
}

// SetAvatar 记录头像对象键。
func (s *Service) SetAvatar(ctx context.Context, userID uint, objectKey string) error {
	res := s.db.WithContext(ctx).Model(&database.Profile{}).
		Where("user_id = ?", userID).
		Update("avatar_object_key", objectKey)
	if res.Error != nil {
		return fmt.Errorf("set avatar: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		row := database.Profile{UserID: userID, AvatarObjectKey: objectKey}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("create profile with avatar: %w", err)
		}
	}
	return nil
}

// AllSkills lists every distinct skill named in any profile, for cache pre-warming.
func (s *Service) AllSkills(ctx context.Context) ([]string, error) {
	var rows []database.Profile
	if err := s.db.WithContext(ctx).Select("skills").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list profile skills: %w", err)
	}
	var all []string
	for _, r := range rows {
		all = append(all, r.Skills...)
	}
	return cleanList(all), nil
}

func (s *Service) load(db *gorm.DB, userID uint) (*database.Profile, error) {
	var row database.Profile
	err := db.Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &row, nil
}

func apply(row *database.Profile, u Update) error {
	if u.FullName != nil {
		row.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Location != nil {
		row.Location = strings.TrimSpace(*u.Location)
	}
	if u.JobType != nil {
		row.JobType = strings.TrimSpace(*u.JobType)
	}
	if u.Skills != nil {
		row.Skills = cleanList(*u.Skills)
	}
	if u.Interests != nil {
		row.Interests = cleanList(*u.Interests)
	}
	if u.Goals != nil {
		row.Goals = cleanList(*u.Goals)
	}
	if u.Experience != nil {
		data, err := EncodeExperience(*u.Experience)
		if err != nil {
			return err
		}
		row.Experience = data
	}
	return nil
}

func toView(row *database.Profile) (*Profile, error) {
	exp, err := DecodeExperience(row.Experience)
	if err != nil {
		return nil, err
	}
	return &Profile{
		UserID:          row.UserID,
		FullName:        row.FullName,
		Location:        row.Location,
		JobType:         row.JobType,
		Skills:          nonNil(row.Skills),
		Interests:       nonNil(row.Interests),
		Goals:           nonNil(row.Goals),
		Experience:      exp,
		HasAvatar:       row.AvatarObjectKey != "",
		Onboarded:       row.Onboarded,
		UpdatedAt:       row.UpdatedAt,
		AvatarObjectKey: row.AvatarObjectKey,
	}, nil
}

// cleanList trims entries, drops blanks and removes case-insensitive duplicates.
func cleanList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	return slice.FilterMap(in, func(_ int, v string) (string, bool) {
		v = strings.TrimSpace(v)
		if v == "" {
			return "", false
		}
		k := strings.ToLower(v)
		if _, dup := seen[k]; dup {
			return "", false
		}
		seen[k] = struct{}{}
		return v, true
	})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobgenie/internal/database"
)

// Allowance 是某用户某类文档在当前周期内的额度快照。
type Allowance struct {
	Plan        string    `json:"plan"`
	DocType     string    `json:"docType"`
	Limit       int       `json:"limit"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	Unlimited   bool      `json:"unlimited"`
	PeriodStart time.Time `json:"periodStart"`
}

// Reservation 记录一次已扣减的额度，生成失败时交给 Release 归还。
type Reservation struct {
	UserID      uint
	DocType     string
	PeriodStart time.Time
}

// Gate 以数据库为唯一事实来源执行额度判断。
type Gate struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGate 创建额度闸门。
func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db, now: time.Now}
}

// Allowance 计算剩余额度，不修改任何数据。
func (g *Gate) Allowance(ctx context.Context, userID uint, docType string) (Allowance, error) {
	if !ValidDocType(docType) {
		return Allowance{}, ErrUnknownDocType
	}
	plan, period, err := g.resolve(ctx, userID)
	if err != nil {
		return Allowance{}, err
	}

	var usage database.DocumentUsage
	err = g.db.WithContext(ctx).
		Where("user_id = ? AND period_start = ? AND doc_type = ?", userID, period, docType).
		Take(&usage).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Allowance{}, fmt.Errorf("load usage: %w", err)
	}

	a := Allowance{
		Plan:        plan.Name,
		DocType:     docType,
		Used:        usage.GeneratedCount,
		Unlimited:   plan.Unlimited(),
		PeriodStart: period,
	}
	if !a.Unlimited {
		a.Limit = plan.Limits[docType]
		a.Remaining = max(a.Limit-a.Used, 0)
	}
	return a, nil
}

// Reserve 原子地占用一个额度。额度不足时返回 ErrLimitReached，且计数保持不变。
func (g *Gate) Reserve(ctx context.Context, userID uint, docType string) (Reservation, error) {
	if !ValidDocType(docType) {
		return Reservation{}, ErrUnknownDocType
	}
	plan, period, err := g.resolve(ctx, userID)
	if err != nil {
		return Reservation{}, err
	}

	db := g.db.WithContext(ctx)
	row := database.DocumentUsage{UserID: userID, PeriodStart: period, DocType: docType}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return Reservation{}, fmt.Errorf("ensure usage row: %w", err)
	}

	q := db.Model(&database.DocumentUsage{}).
		Where("user_id = ? AND period_start = ? AND doc_type = ?", userID, period, docType)
	if !plan.Unlimited() {
		q = q.Where("generated_count < ?", plan.Limits[docType])
	}
	res := q.Updates(map[string]any{
		"generated_count": gorm.Expr("generated_count + 1"),
		"updated_at":      g.now().UTC(),
	})
	if res.Error != nil {
		return Reservation{}, fmt.Errorf("increment usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Reservation{}, ErrLimitReached
	}
	return Reservation{UserID: userID, DocType: docType, PeriodStart: period}, nil
}

// Release 归还 Reserve 占用的额度。
func (g *Gate) Release(ctx context.Context, r Reservation) error {
	err := g.db.WithContext(ctx).Model(&database.DocumentUsage{}).
		Where("user_id = ? AND period_start = ? AND doc_type = ? AND generated_count > 0",
			r.UserID, r.PeriodStart, r.DocType).
		Updates(map[string]any{
			"generated_count": gorm.Expr("generated_count - 1"),
			"updated_at":      g.now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("release usage: %w", err)
	}
	return nil
}

// SetPlan 直接设置用户计划，供运维命令使用。
func (g *Gate) SetPlan(ctx context.Context, userID uint, plan string) error {
	if _, err := LookupPlan(plan); err != nil {
		return err
	}
	sub := database.Subscription{UserID: userID, Plan: plan, Status: "active"}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "status", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

func (g *Gate) resolve(ctx context.Context, userID uint) (Plan, time.Time, error) {
	var sub database.Subscription
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).Take(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return plans[PlanFree], PeriodStart(nil, g.now()), nil
	case err != nil:
		return Plan{}, time.Time{}, fmt.Errorf("load subscription: %w", err)
	}

	plan, err := LookupPlan(sub.Plan)
	if err != nil {
		return Plan{}, time.Time{}, fmt.Errorf("subscription of user %d: %w", userID, err)
	}
	return plan, PeriodStart(&sub, g.now()), nil
}

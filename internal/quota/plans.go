// Package quota 按订阅计划限制每个计费周期内 AI 生成的文档数量。
package quota

import (
	"errors"
	"time"

	"jobgenie/internal/database"
)

// 计划名称。
const (
	PlanFree      = "free"
	PlanPro       = "pro"
	PlanUnlimited = "unlimited"
)

var (
	// ErrLimitReached 表示当前周期的额度已经用完。
	ErrLimitReached = errors.New("quota: limit reached")
	// ErrUnknownDocType 表示文档类型不在计费范围内。
	ErrUnknownDocType = errors.New("quota: unknown document type")
	// ErrUnknownPlan 表示计划名称无法识别。
	ErrUnknownPlan = errors.New("quota: unknown plan")
)

// Plan 描述一个计划在每个周期内各类文档的上限。Limits 为 nil 表示不限量。
type Plan struct {
	Name   string
	Limits map[string]int
}

// Unlimited reports whether the plan bypasses the gate.
func (p Plan) Unlimited() bool { return p.Limits == nil }

var plans = map[string]Plan{
	PlanFree: {Name: PlanFree, Limits: map[string]int{
		database.DocumentTypeResume:      3,
		database.DocumentTypeCoverLetter: 3,
	}},
	PlanPro: {Name: PlanPro, Limits: map[string]int{
		database.DocumentTypeResume:      30,
		database.DocumentTypeCoverLetter: 30,
	}},
	PlanUnlimited: {Name: PlanUnlimited},
}

// LookupPlan 返回名称对应的计划，空名称视为免费计划。
func LookupPlan(name string) (Plan, error) {
	if name == "" {
		name = PlanFree
	}
	p, ok := plans[name]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// ValidDocType reports whether docType is metered.
func ValidDocType(docType string) bool {
	return docType == database.DocumentTypeResume || docType == database.DocumentTypeCoverLetter
}

// PeriodStart 返回计费周期起点：优先使用订阅的当前周期开始时间，否则取 UTC 当月第一天。
func PeriodStart(sub *database.Subscription, now time.Time) time.Time {
	if sub != nil && sub.CurrentPeriodStart != nil && !sub.CurrentPeriodStart.IsZero() {
		return sub.CurrentPeriodStart.UTC().Truncate(time.Second)
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

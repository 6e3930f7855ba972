// Package billing 对接 Stripe 订阅：结账、客户门户与 webhook 同步。
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobgenie/internal/config"
	"jobgenie/internal/database"
	"jobgenie/internal/quota"
)

var (
	// ErrNoCustomer 表示用户从未完成过支付，没有可管理的账单账户。
	ErrNoCustomer = errors.New("billing: no billing customer")
	// ErrUnknownPrice 表示价格不在配置的价格表中。
	ErrUnknownPrice = errors.New("billing: unknown price")
	// ErrInvalidEvent 表示 webhook 签名或内容无效。
	ErrInvalidEvent = errors.New("billing: invalid webhook event")
)

// 订阅状态中视为已终止的取值，落回免费计划。
var endedStatuses = map[string]bool{
	"canceled":           true,
	"unpaid":             true,
	"incomplete_expired": true,
}

// Summary 是账单页展示的订阅与额度信息。
type Summary struct {
	Plan             string            `json:"plan"`
	Status           string            `json:"status"`
	CurrentPeriodEnd *time.Time        `json:"currentPeriodEnd,omitempty"`
	CancelAt         *time.Time        `json:"cancelAt,omitempty"`
	HasBilling       bool              `json:"hasBillingAccount"`
	Usage            []quota.Allowance `json:"usage"`
}

// Service 维护 subscriptions 表与支付网关之间的一致性。
type Service struct {
	db      *gorm.DB
	gateway Gateway
	gate    *quota.Gate
	cfg     config.StripeConfig
	prices  map[string]string
	logger  *slog.Logger
}

// NewService 创建账单服务。
func NewService(db *gorm.DB, gateway Gateway, gate *quota.Gate, cfg config.StripeConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:      db,
		gateway: gateway,
		gate:    gate,
		cfg:     cfg,
		prices:  cfg.PricePlans(),
		logger:  logger,
	}
}

// Checkout 返回订阅结账页地址。
func (s *Service) Checkout(ctx context.Context, userID uint, email, priceID string) (string, error) {
	if _, ok := s.prices[priceID]; !ok {
		return "", ErrUnknownPrice
	}
	sub, err := s.subscription(s.db.WithContext(ctx), userID)
	if err != nil {
		return "", err
	}
	req := CheckoutRequest{
		UserID:     userID,
		Email:      email,
		PriceID:    priceID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	}
	if sub != nil {
		req.CustomerID = sub.StripeCustomerID
	}
	return s.gateway.CheckoutURL(ctx, req)
}

// Portal 返回客户门户地址。
func (s *Service) Portal(ctx context.Context, userID uint) (string, error) {
	sub, err := s.subscription(s.db.WithContext(ctx), userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	return s.gateway.PortalURL(ctx, sub.StripeCustomerID, s.cfg.PortalReturn)
}

// HandleWebhook 校验签名并同步订阅状态。未关注的事件类型直接忽略。
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	log := s.logger.With(slog.String("event_id", evt.ID), slog.String("event_type", evt.Type))

	switch {
	case evt.Checkout != nil:
		return s.applyCheckout(ctx, evt.Checkout)
	case evt.Subscription != nil:
		return s.applySubscription(ctx, evt.Type == EventSubscriptionDeleted, evt.Subscription, log)
	default:
		log.Debug("ignoring stripe event")
		return nil
	}
}

func (s *Service) applyCheckout(ctx context.Context, c *CheckoutCompleted) error {
	if c.UserID == 0 {
		return fmt.Errorf("%w: checkout without client reference", ErrInvalidEvent)
	}
	plan := s.planFor(c.PriceID, quota.PlanPro)
	row := database.Subscription{
		UserID:               c.UserID,
		Plan:                 plan,
		Status:               "active",
		StripeCustomerID:     c.CustomerID,
		StripeSubscriptionID: c.SubscriptionID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan", "status", "stripe_customer_id", "stripe_subscription_id", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store checkout: %w", err)
	}
	return nil
}

func (s *Service) applySubscription(ctx context.Context, deleted bool, c *SubscriptionChange, log *slog.Logger) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row database.Subscription
		err := tx.Where("stripe_subscription_id = ?", c.SubscriptionID).
			Or("stripe_customer_id = ? AND stripe_customer_id <> ''", c.CustomerID).
			Order("id").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("subscription event for unknown customer",
				slog.String("customer_id", c.CustomerID),
				slog.String("subscription_id", c.SubscriptionID),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}

		row.Status = c.Status
		row.StripeSubscriptionID = c.SubscriptionID
		row.CancelAt = c.CancelAt
		if deleted || endedStatuses[c.Status] {
			row.Plan = quota.PlanFree
			row.CurrentPeriodStart = nil
			row.CurrentPeriodEnd = nil
			if deleted {
				row.Status = "canceled"
			}
		} else {
			row.Plan = s.planFor(c.PriceID, row.Plan)
			row.CurrentPeriodStart = c.PeriodStart
			row.CurrentPeriodEnd = c.PeriodEnd
		}

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		return nil
	})
}

// Summary 返回订阅状态与两类文档的额度。
func (s *Service) Summary(ctx context.Context, userID uint) (*Summary, error) {
	sub, err := s.subscription(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	out := &Summary{Plan: quota.PlanFree, Status: "active", Usage: make([]quota.Allowance, 0, 2)}
	if sub != nil {
		if sub.Plan != "" {
			out.Plan = sub.Plan
		}
		if sub.Status != "" {
			out.Status = sub.Status
		}
		out.CurrentPeriodEnd = sub.CurrentPeriodEnd
		out.CancelAt = sub.CancelAt
		out.HasBilling = sub.StripeCustomerID != ""
	}
	for _, docType := range []string{database.DocumentTypeResume, database.DocumentTypeCoverLetter} {
		a, err := s.gate.Allowance(ctx, userID, docType)
		if err != nil {
			return nil, err
		}
		out.Usage = append(out.Usage, a)
	}
	return out, nil
}

func (s *Service) planFor(priceID, fallback string) string {
	if plan, ok := s.prices[priceID]; ok {
		if _, err := quota.LookupPlan(plan); err == nil {
			return plan
		}
	}
	return fallback
}

func (s *Service) subscription(db *gorm.DB, userID uint) (*database.Subscription, error) {
	var row database.Subscription
	err := db.Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return &row, nil
}

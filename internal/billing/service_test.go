package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jobgenie/internal/config"
	"jobgenie/internal/database"
	"jobgenie/internal/database/dbtest"
	"jobgenie/internal/quota"
)

type fakeGateway struct {
	checkouts []CheckoutRequest
	portals   []string
	event     Event
	parseErr  error
}

func (f *fakeGateway) CheckoutURL(_ context.Context, req CheckoutRequest) (string, error) {
	f.checkouts = append(f.checkouts, req)
	return "https://checkout.test/" + req.PriceID, nil
}

func (f *fakeGateway) PortalURL(_ context.Context, customerID, _ string) (string, error) {
	f.portals = append(f.portals, customerID)
	return "https://portal.test/" + customerID, nil
}

func (f *fakeGateway) ParseEvent([]byte, string) (Event, error) {
	return f.event, f.parseErr
}

func newService(t *testing.T) (*Service, *fakeGateway, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	gw := &fakeGateway{}
	cfg := config.StripeConfig{
		SuccessURL:   "https://app.test/billing/success",
		CancelURL:    "https://app.test/billing",
		PortalReturn: "https://app.test/billing",
		Prices:       "price_pro=pro,price_max=unlimited",
	}
	return NewService(db, gw, quota.NewGate(db), cfg, nil), gw, db
}

func loadSub(t *testing.T, db *gorm.DB, userID uint) database.Subscription {
	t.Helper()
	var sub database.Subscription
	require.NoError(t, db.Where("user_id = ?", userID).Take(&sub).Error)
	return sub
}

func TestCheckout_RejectsUnknownPrice(t *testing.T) {
	svc, gw, _ := newService(t)

	_, err := svc.Checkout(context.Background(), 1, "ada@example.com", "price_gold")

	require.ErrorIs(t, err, ErrUnknownPrice)
	assert.Empty(t, gw.checkouts)
}

func TestCheckout_ReusesExistingCustomer(t *testing.T) {
	svc, gw, db := newService(t)
	require.NoError(t, db.Create(&database.Subscription{UserID: 3, Plan: quota.PlanFree, StripeCustomerID: "cus_3"}).Error)

	url, err := svc.Checkout(context.Background(), 3, "ada@example.com", "price_pro")
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.test/price_pro", url)
	require.Len(t, gw.checkouts, 1)
	assert.Equal(t, "cus_3", gw.checkouts[0].CustomerID)
	assert.Equal(t, uint(3), gw.checkouts[0].UserID)
	assert.Equal(t, "https://app.test/billing/success", gw.checkouts[0].SuccessURL)
}

func TestPortal_RequiresCustomer(t *testing.T) {
	svc, gw, db := newService(t)
	require.NoError(t, db.Create(&database.Subscription{UserID: 4, Plan: quota.PlanFree}).Error)

	_, err := svc.Portal(context.Background(), 4)
	require.ErrorIs(t, err, ErrNoCustomer)

	_, err = svc.Portal(context.Background(), 99)
	require.ErrorIs(t, err, ErrNoCustomer)
	assert.Empty(t, gw.portals)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	svc, gw, _ := newService(t)
	gw.parseErr = errors.New("bad signature")

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=00")

	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestHandleWebhook_SubscriptionLifecycle(t *testing.T) {
	svc, gw, db := newService(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&database.Subscription{UserID: 5, Plan: quota.PlanFree, Status: "active"}).Error)

	gw.event = Event{ID: "evt_1", Type: EventCheckoutCompleted, Checkout: &CheckoutCompleted{
		UserID: 5, CustomerID: "cus_5", SubscriptionID: "sub_5", PriceID: "price_max",
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, ""))

	sub := loadSub(t, db, 5)
	assert.Equal(t, quota.PlanUnlimited, sub.Plan)
	assert.Equal(t, "cus_5", sub.StripeCustomerID)

	start := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	gw.event = Event{ID: "evt_2", Type: EventSubscriptionUpdated, Subscription: &SubscriptionChange{
		CustomerID: "cus_5", SubscriptionID: "sub_5", Status: "active", PriceID: "price_pro",
		PeriodStart: &start, PeriodEnd: &end,
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, ""))

	sub = loadSub(t, db, 5)
	assert.Equal(t, quota.PlanPro, sub.Plan)
	require.NotNil(t, sub.CurrentPeriodStart)
	assert.True(t, start.Equal(*sub.CurrentPeriodStart))

	gw.event = Event{ID: "evt_3", Type: EventSubscriptionDeleted, Subscription: &SubscriptionChange{
		CustomerID: "cus_5", SubscriptionID: "sub_5", Status: "canceled",
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, ""))

	sub = loadSub(t, db, 5)
	assert.Equal(t, quota.PlanFree, sub.Plan)
	assert.Equal(t, "canceled", sub.Status)
	assert.Nil(t, sub.CurrentPeriodStart)
	assert.Equal(t, "cus_5", sub.StripeCustomerID)
}

func TestHandleWebhook_UnknownCustomerIgnored(t *testing.T) {
	svc, gw, _ := newService(t)
	gw.event = Event{Type: EventSubscriptionUpdated, Subscription: &SubscriptionChange{
		CustomerID: "cus_ghost", SubscriptionID: "sub_ghost", Status: "active",
	}}

	require.NoError(t, svc.HandleWebhook(context.Background(), nil, ""))
}

func TestSummary_ReportsBothAllowances(t *testing.T) {
	svc, _, db := newService(t)
	require.NoError(t, db.Create(&database.Subscription{UserID: 6, Plan: quota.PlanPro, Status: "active", StripeCustomerID: "cus_6"}).Error)

	sum, err := svc.Summary(context.Background(), 6)
	require.NoError(t, err)

	assert.Equal(t, quota.PlanPro, sum.Plan)
	assert.True(t, sum.HasBilling)
	require.Len(t, sum.Usage, 2)
	assert.Equal(t, database.DocumentTypeResume, sum.Usage[0].DocType)
	assert.Equal(t, 30, sum.Usage[0].Remaining)
	assert.Equal(t, database.DocumentTypeCoverLetter, sum.Usage[1].DocType)
}

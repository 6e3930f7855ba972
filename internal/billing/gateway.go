package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event types the service reacts to.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CheckoutRequest is what the gateway needs to open a subscription checkout.
type CheckoutRequest struct {
	UserID     uint
	Email      string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutCompleted carries the ids Stripe assigned after a successful checkout.
type CheckoutCompleted struct {
	UserID         uint
	CustomerID     string
	SubscriptionID string
	PriceID        string
}

// SubscriptionChange is a subscription lifecycle update.
type SubscriptionChange struct {
	CustomerID     string
	SubscriptionID string
	Status         string
	PriceID        string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	CancelAt       *time.Time
}

// Event is a verified webhook event reduced to the fields the service uses.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutCompleted
	Subscription *SubscriptionChange
}

// Gateway talks to the payment provider.
type Gateway interface {
	CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error)
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	ParseEvent(payload []byte, signature string) (Event, error)
}

// StripeGateway implements Gateway with the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway for one Stripe account.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error) {
	userID := strconv.FormatUint(uint64(req.UserID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("price_id", req.PriceID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) ParseEvent(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, err
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		userID, _ := strconv.ParseUint(sess.ClientReferenceID, 10, 64)
		c := &CheckoutCompleted{UserID: uint(userID), PriceID: sess.Metadata["price_id"]}
		if sess.Customer != nil {
			c.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			c.SubscriptionID = sess.Subscription.ID
		}
		out.Checkout = c
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		c := &SubscriptionChange{
			SubscriptionID: sub.ID,
			Status:         string(sub.Status),
			PeriodStart:    unixTime(sub.CurrentPeriodStart),
			PeriodEnd:      unixTime(sub.CurrentPeriodEnd),
			CancelAt:       unixTime(sub.CancelAt),
		}
		if sub.Customer != nil {
			c.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			c.PriceID = sub.Items.Data[0].Price.ID
		}
		out.Subscription = c
	}
	return out, nil
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

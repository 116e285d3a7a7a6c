package services

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	apperrors "github.com/yashrajoria/checkout-service/errors"
	"github.com/yashrajoria/checkout-service/models"
)

const checkoutCurrency = "usd"

// CheckoutSessionInput describes a hosted checkout session to create.
type CheckoutSessionInput struct {
	Items      []models.CheckoutItem
	SuccessURL string
	CancelURL  string
	// OrderID, when set, is stored as client_reference_id and order_id metadata.
	OrderID  string
	Metadata map[string]string
}

// PaymentProvider is the checkout session client used by the controllers and
// the webhook service.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*models.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
	WebhookConfigured() bool
}

type StripeService struct {
	sc            *client.API
	webhookSecret string
}

func NewStripeService(secretKey, webhookSecret string) *StripeService {
	return &StripeService{
		sc:            client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

// buildLineItems converts storefront lines into Stripe price_data line items.
func buildLineItems(items []models.CheckoutItem) []*stripe.CheckoutSessionLineItemParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		quantity := int64(item.Quantity)
		if quantity == 0 {
			quantity = 1
		}
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		if item.Image != "" {
			productData.Images = []*string{stripe.String(item.Image)}
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(checkoutCurrency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(models.ToMinorUnits(item.Price)),
			},
			Quantity: stripe.Int64(quantity),
		})
	}
	return lineItems
}

func buildSessionParams(in CheckoutSessionInput) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          buildLineItems(in.Items),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.OrderID != "" {
		params.ClientReferenceID = stripe.String(in.OrderID)
		params.AddMetadata("order_id", in.OrderID)
	}
	return params
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*models.CheckoutSession, error) {
	params := buildSessionParams(in)
	params.Context = ctx

	sess, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError(err)
	}
	out := &models.CheckoutSession{ID: sess.ID}
	if sess.URL != "" {
		out.URL = stripe.String(sess.URL)
	}
	return out, nil
}

func (s *StripeService) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	sess, err := s.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, providerError(err)
	}
	return sess, nil
}

func (s *StripeService) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

func (s *StripeService) WebhookConfigured() bool {
	return s.webhookSecret != ""
}

func providerError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return apperrors.ErrPaymentProvider.WithMessage(stripeErr.Msg).Wrap(err)
	}
	return apperrors.ErrPaymentProvider.Wrap(err)
}

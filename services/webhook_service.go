package services

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v80"
	apperrors "github.com/yashrajoria/checkout-service/errors"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

// WebhookService verifies and applies Stripe webhook deliveries.
type WebhookService interface {
	// HandleWebhook returns the event type once the event is verified and
	// processed, or acknowledged as a redelivery.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (string, error)
}

type webhookServiceImpl struct {
	provider PaymentProvider
	orders   OrderService
	ledger   repository.EventLedger
	metrics  MetricsRecorder
	logger   *zap.Logger
}

// NewWebhookService creates a WebhookService. ledger and metrics may be nil;
// without a ledger redeliveries are still safe because completion is idempotent.
func NewWebhookService(
	provider PaymentProvider,
	orders OrderService,
	ledger repository.EventLedger,
	metrics MetricsRecorder,
	logger *zap.Logger,
) WebhookService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &webhookServiceImpl{
		provider: provider,
		orders:   orders,
		ledger:   ledger,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (string, error) {
	if !s.provider.WebhookConfigured() {
		s.logger.Error("Webhook secret not configured")
		return "", apperrors.ErrWebhookNotConfigured
	}

	event, err := s.provider.ConstructEvent(payload, signatureHeader)
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return "", apperrors.ErrInvalidSignature.WithMessage("Webhook Error: " + err.Error())
	}
	eventType := string(event.Type)

	if s.ledger != nil && event.ID != "" {
		first, err := s.ledger.MarkProcessed(ctx, event.ID)
		switch {
		case err != nil:
			s.logger.Warn("Event ledger unavailable, processing without dedupe",
				zap.String("event_id", event.ID), zap.Error(err))
		case !first:
			s.logger.Info("Duplicate webhook event ignored",
				zap.String("event_id", event.ID), zap.String("type", eventType))
			return eventType, nil
		}
	}

	if err := s.dispatch(ctx, event); err != nil {
		if s.ledger != nil && event.ID != "" {
			if fErr := s.ledger.Forget(ctx, event.ID); fErr != nil {
				s.logger.Warn("Failed to release event ledger entry", zap.String("event_id", event.ID), zap.Error(fErr))
			}
		}
		return "", err
	}
	return eventType, nil
}

func (s *webhookServiceImpl) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperrors.ErrInvalidRequest.WithMessage("Webhook Error: invalid checkout session payload").Wrap(err)
		}
		orderID := sess.Metadata["order_id"]
		if orderID == "" {
			orderID = sess.ClientReferenceID
		}
		s.logger.Info("Checkout session completed",
			zap.String("session_id", sess.ID),
			zap.String("order_id", orderID),
			zap.String("payment_status", string(sess.PaymentStatus)),
		)
		if err := s.orders.CompleteBySession(ctx, sess.ID, orderID); err != nil {
			return err
		}
		s.logLineItems(ctx, sess.ID)
		s.record(ctx, aws_pkg.MetricPaymentSucceeded)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		_ = json.Unmarshal(event.Data.Raw, &sess)
		s.logger.Info("Checkout session expired", zap.String("session_id", sess.ID))

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		_ = json.Unmarshal(event.Data.Raw, &pi)
		s.logger.Info("Payment succeeded", zap.String("payment_intent", pi.ID), zap.Int64("amount", pi.Amount))

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		_ = json.Unmarshal(event.Data.Raw, &pi)
		fields := []zap.Field{zap.String("payment_intent", pi.ID)}
		if pi.LastPaymentError != nil {
			fields = append(fields, zap.String("reason", pi.LastPaymentError.Msg))
		}
		s.logger.Warn("Payment failed", fields...)
		s.record(ctx, aws_pkg.MetricPaymentFailed)

	default:
		s.logger.Info("Unhandled webhook event type", zap.String("type", string(event.Type)))
	}
	return nil
}

// logLineItems fetches the purchased lines for the audit log. Failures are
// logged only.
func (s *webhookServiceImpl) logLineItems(ctx context.Context, sessionID string) {
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to retrieve checkout line items", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if sess.LineItems == nil {
		return
	}
	for _, li := range sess.LineItems.Data {
		s.logger.Info("Purchased line item",
			zap.String("session_id", sessionID),
			zap.String("description", li.Description),
			zap.Int64("quantity", li.Quantity),
			zap.Int64("amount_total", li.AmountTotal),
		)
	}
}

func (s *webhookServiceImpl) record(ctx context.Context, metric string) {
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "checkout-service"}); err != nil {
		s.logger.Warn("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

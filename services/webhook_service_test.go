package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	apperrors "github.com/yashrajoria/checkout-service/errors"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// fakeProvider verifies real signatures but never talks to Stripe.
type fakeProvider struct {
	secret    string
	sessions  map[string]*stripe.CheckoutSession
	getErr    error
	getCalls  int
	created   []services.CheckoutSessionInput
	createErr error
	nextID    string
	mu        sync.Mutex
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, in services.CheckoutSessionInput) (*models.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, in)
	url := "https://checkout.stripe.com/c/pay/" + p.nextID
	return &models.CheckoutSession{ID: p.nextID, URL: &url}, nil
}

func (p *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++
	if p.getErr != nil {
		return nil, p.getErr
	}
	if s, ok := p.sessions[id]; ok {
		return s, nil
	}
	return &stripe.CheckoutSession{ID: id}, nil
}

func (p *fakeProvider) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

func (p *fakeProvider) WebhookConfigured() bool { return p.secret != "" }

type memoryLedger struct {
	mu        sync.Mutex
	seen      map[string]bool
	markErr   error
	forgotten []string
}

func (l *memoryLedger) MarkProcessed(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.markErr != nil {
		return false, l.markErr
	}
	if l.seen == nil {
		l.seen = map[string]bool{}
	}
	if l.seen[id] {
		return false, nil
	}
	l.seen[id] = true
	return true, nil
}

func (l *memoryLedger) Forget(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, id)
	l.forgotten = append(l.forgotten, id)
	return nil
}

func signedEvent(t *testing.T, secret, eventID, eventType, object string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2024-06-20","type":%q,"data":{"object":%s}}`,
		eventID, eventType, object))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func sessionObject(sessionID, orderID string) string {
	return fmt.Sprintf(`{"id":%q,"object":"checkout.session","payment_status":"paid","metadata":{"order_id":%q}}`, sessionID, orderID)
}

func TestWebhook_NotConfigured(t *testing.T) {
	f := newFixture(t, nil)
	svc := services.NewWebhookService(&fakeProvider{}, f.svc, nil, nil, zap.NewNop())

	_, err := svc.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=abc")
	require.ErrorIs(t, err, apperrors.ErrWebhookNotConfigured)
	assert.Equal(t, "Webhook secret not configured", apperrors.From(err).Message)
	assert.Equal(t, 500, apperrors.From(err).Code)
}

func TestWebhook_InvalidSignatureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	require.NoError(t, f.svc.AttachCheckoutSession(context.Background(), id, "cs_1"))
	svc := services.NewWebhookService(&fakeProvider{secret: testWebhookSecret}, f.svc, nil, nil, zap.NewNop())

	payload, header := signedEvent(t, "whsec_wrong", "evt_1", "checkout.session.completed", sessionObject("cs_1", id))
	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	assert.Contains(t, apperrors.From(err).Message, "Webhook Error: ")
	assert.Equal(t, 400, apperrors.From(err).Code)
	assert.Equal(t, models.OrderStatusPending, f.status(t, id))
}

func TestWebhook_SessionCompletedCompletesOrder(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	require.NoError(t, f.svc.AttachCheckoutSession(context.Background(), id, "cs_1"))
	provider := &fakeProvider{
		secret: testWebhookSecret,
		sessions: map[string]*stripe.CheckoutSession{
			"cs_1": {ID: "cs_1", LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{
				{Description: "Mug", Quantity: 2, AmountTotal: 2000},
			}}},
		},
	}
	ledger := &memoryLedger{}
	svc := services.NewWebhookService(provider, f.svc, ledger, f.metrics, zap.NewNop())

	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "checkout.session.completed", sessionObject("cs_1", ""))
	eventType, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "checkout.session.completed", eventType)
	assert.Equal(t, models.OrderStatusCompleted, f.status(t, id))
	assert.Equal(t, 1, provider.getCalls)

	// Redelivery is acknowledged without reprocessing.
	eventType, err = svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "checkout.session.completed", eventType)
	assert.Equal(t, 1, provider.getCalls)
	assert.Equal(t, []string{models.OrderEventCreated, models.OrderEventCompleted}, f.publisher.types())
}

func TestWebhook_CompletionDoesNotReviveCancelledOrder(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	require.NoError(t, f.svc.CancelOrder(context.Background(), id))
	svc := services.NewWebhookService(&fakeProvider{secret: testWebhookSecret}, f.svc, nil, nil, zap.NewNop())

	payload, header := signedEvent(t, testWebhookSecret, "evt_2", "checkout.session.completed", sessionObject("cs_unknown", id))
	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, f.status(t, id))
}

func TestWebhook_LineItemFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	provider := &fakeProvider{secret: testWebhookSecret, getErr: errors.New("stripe down")}
	svc := services.NewWebhookService(provider, f.svc, nil, nil, zap.NewNop())

	payload, header := signedEvent(t, testWebhookSecret, "evt_3", "checkout.session.completed", sessionObject("cs_9", id))
	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, f.status(t, id))
}

func TestWebhook_StorageFailureReleasesLedger(t *testing.T) {
	orders := services.NewOrderService(brokenRepo{}, nil, nil, nil, zap.NewNop())
	ledger := &memoryLedger{}
	svc := services.NewWebhookService(&fakeProvider{secret: testWebhookSecret}, orders, ledger, nil, zap.NewNop())

	payload, header := signedEvent(t, testWebhookSecret, "evt_4", "checkout.session.completed", sessionObject("cs_1", "o-1"))
	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	assert.Equal(t, []string{"evt_4"}, ledger.forgotten)
}

func TestWebhook_LedgerOutageStillProcesses(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	ledger := &memoryLedger{markErr: errors.New("redis down")}
	svc := services.NewWebhookService(&fakeProvider{secret: testWebhookSecret}, f.svc, ledger, nil, zap.NewNop())

	payload, header := signedEvent(t, testWebhookSecret, "evt_5", "checkout.session.completed", sessionObject("cs_1", id))
	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, f.status(t, id))
}

func TestWebhook_OtherEventsAreAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	svc := services.NewWebhookService(&fakeProvider{secret: testWebhookSecret}, f.svc, nil, f.metrics, zap.NewNop())

	tests := []struct {
		eventType string
		object    string
	}{
		{"checkout.session.expired", `{"id":"cs_1","object":"checkout.session"}`},
		{"payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent","amount":2000}`},
		{"payment_intent.payment_failed", `{"id":"pi_2","object":"payment_intent","last_payment_error":{"message":"card declined"}}`},
		{"customer.created", `{"id":"cus_1","object":"customer"}`},
	}
	for i, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			payload, header := signedEvent(t, testWebhookSecret, fmt.Sprintf("evt_o%d", i), tt.eventType, tt.object)
			got, err := svc.HandleWebhook(context.Background(), payload, header)
			require.NoError(t, err)
			assert.Equal(t, tt.eventType, got)
		})
	}
	assert.Equal(t, models.OrderStatusPending, f.status(t, id))
	assert.Equal(t, 1, f.metrics.counts["PaymentFailed"])
}

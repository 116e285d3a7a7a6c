package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/checkout-service/errors"
	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

// OrderService defines the order lifecycle operations.
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, error)
	// CompleteOrder moves a pending order to completed. Absent or already
	// terminal orders are left untouched and no error is returned.
	CompleteOrder(ctx context.Context, orderID string) error
	// CompleteBySession resolves the order by its checkout session id, falling
	// back to fallbackOrderID, and completes it.
	CompleteBySession(ctx context.Context, sessionID, fallbackOrderID string) error
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrdersForUser(ctx context.Context, userID string) ([]models.Order, error)
	// AttachCheckoutSession stores sessionID on a pending order.
	AttachCheckoutSession(ctx context.Context, orderID, sessionID string) error
	// ValidateCheckoutOrder checks that orderID names a pending order.
	ValidateCheckoutOrder(ctx context.Context, orderID string) error
}

// defaultPublishTimeout bounds how long a request waits on the event bus.
const defaultPublishTimeout = 3 * time.Second

type orderServiceImpl struct {
	repo           repository.OrderRepository
	publisher      EventPublisher
	metrics        MetricsRecorder
	scheduler      *CompletionScheduler
	logger         *zap.Logger
	publishTimeout time.Duration
}

// NewOrderService creates a new OrderService. publisher, metrics and
// scheduler may be nil.
func NewOrderService(
	repo repository.OrderRepository,
	publisher EventPublisher,
	metrics MetricsRecorder,
	scheduler *CompletionScheduler,
	logger *zap.Logger,
) OrderService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &orderServiceImpl{
		repo:           repo,
		publisher:      publisher,
		metrics:        metrics,
		scheduler:      scheduler,
		logger:         logger,
		publishTimeout: defaultPublishTimeout,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.ToOrderItem())
	}
	items = models.NormalizeItems(items)

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Items:           items,
		Total:           models.CalculateTotal(items),
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to persist order", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, storeError(err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Float64("total", order.Total),
		zap.Int("items", len(order.Items)),
	)
	s.emit(ctx, models.OrderEventCreated, order, aws_pkg.MetricOrdersCreated)

	orderID := order.ID
	s.scheduler.Schedule(orderID, func() {
		if err := s.CompleteOrder(context.Background(), orderID); err != nil {
			s.logger.Error("Simulated completion failed", zap.String("order_id", orderID), zap.Error(err))
		}
	})

	return &models.CreateOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Message: "Order created successfully",
	}, nil
}

func (s *orderServiceImpl) CompleteOrder(ctx context.Context, orderID string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Completion for unknown order ignored", zap.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return storeError(err)
	}
	if !order.Status.CanTransitionTo(models.OrderStatusCompleted) {
		s.logger.Info("Order already terminal, completion skipped",
			zap.String("order_id", orderID),
			zap.String("status", string(order.Status)),
		)
		return nil
	}

	err = s.repo.TransitionStatus(ctx, orderID, order.Status, models.OrderStatusCompleted)
	switch {
	case errors.Is(err, repository.ErrStatusConflict), errors.Is(err, repository.ErrNotFound):
		s.logger.Info("Order changed concurrently, completion skipped", zap.String("order_id", orderID))
		return nil
	case err != nil:
		return storeError(err)
	}

	s.scheduler.Cancel(orderID)
	order.Status = models.OrderStatusCompleted
	s.logger.Info("Order completed", zap.String("order_id", orderID))
	s.emit(ctx, models.OrderEventCompleted, order, aws_pkg.MetricOrdersCompleted)
	return nil
}

func (s *orderServiceImpl) CompleteBySession(ctx context.Context, sessionID, fallbackOrderID string) error {
	order, err := s.repo.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		return s.CompleteOrder(ctx, order.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return storeError(err)
	}

	if fallbackOrderID == "" {
		s.logger.Warn("No order matches checkout session", zap.String("session_id", sessionID))
		return nil
	}
	return s.CompleteOrder(ctx, fallbackOrderID)
}

func (s *orderServiceImpl) CancelOrder(ctx context.Context, orderID string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return storeError(err)
	}
	if !order.Status.CanTransitionTo(models.OrderStatusCancelled) {
		return apperrors.ErrInvalidState.WithMessage(msgCancelPending)
	}

	err = s.repo.TransitionStatus(ctx, orderID, order.Status, models.OrderStatusCancelled)
	if errors.Is(err, repository.ErrStatusConflict) {
		return apperrors.ErrInvalidState.WithMessage(msgCancelPending)
	}
	if err != nil {
		return storeError(err)
	}

	if s.scheduler.Cancel(orderID) {
		s.logger.Debug("Simulated completion disarmed", zap.String("order_id", orderID))
	}
	order.Status = models.OrderStatusCancelled
	s.logger.Info("Order cancelled", zap.String("order_id", orderID))
	s.emit(ctx, models.OrderEventCancelled, order, aws_pkg.MetricOrdersCancelled)
	return nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err)
	}
	return order, nil
}

func (s *orderServiceImpl) GetOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *orderServiceImpl) ValidateCheckoutOrder(ctx context.Context, orderID string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return storeError(err)
	}
	// Checkout only makes sense while the order can still be paid.
	if !order.Status.CanTransitionTo(models.OrderStatusCompleted) {
		return apperrors.ErrInvalidState.WithMessage(msgAttachPending)
	}
	return nil
}

func (s *orderServiceImpl) AttachCheckoutSession(ctx context.Context, orderID, sessionID string) error {
	if err := s.ValidateCheckoutOrder(ctx, orderID); err != nil {
		return err
	}
	if err := s.repo.SetSessionID(ctx, orderID, sessionID); err != nil {
		return storeError(err)
	}
	s.logger.Info("Checkout session attached",
		zap.String("order_id", orderID),
		zap.String("session_id", sessionID),
	)
	return nil
}

// emit publishes the lifecycle event and bumps the matching counter. Both are
// best effort and each is bounded by publishTimeout.
func (s *orderServiceImpl) emit(ctx context.Context, eventType string, order *models.Order, metric string) {
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	err := s.publisher.Publish(pubCtx, models.NewOrderEvent(eventType, order))
	cancel()
	if err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("type", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	metricCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.metrics.RecordCount(metricCtx, metric, map[string]string{"Service": "checkout-service"}); err != nil {
		s.logger.Warn("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

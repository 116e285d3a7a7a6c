package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/checkout-service/models"
)

var (
	ErrNotFound           = errors.New("order not found")
	ErrStatusConflict     = errors.New("order status changed concurrently")
	ErrStorageUnavailable = errors.New("order storage unavailable")
)

// OrderRepository defines data-access operations for orders. Every backend
// persists a write fully before returning.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByUserID(ctx context.Context, userID string) ([]models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	// TransitionStatus sets status to `to` only while it still equals `from`.
	TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	SetSessionID(ctx context.Context, id, sessionID string) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}

func now() time.Time { return time.Now().UTC() }

package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/checkout-service/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements OrderRepository on Postgres using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return unavailable("insert order", err)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	return r.first(ctx, "stripe_session_id = ?", sessionID)
}

func (r *GormOrderRepository) first(ctx context.Context, query string, arg interface{}) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where(query, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find order", err)
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, unavailable("find user orders", err)
	}
	return orders, nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	return r.updates(r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id),
		map[string]interface{}{"status": status})
}

func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	err := r.updates(r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ? AND status = ?", id, from),
		map[string]interface{}{"status": to})
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return findErr
	}
	return ErrStatusConflict
}

func (r *GormOrderRepository) SetSessionID(ctx context.Context, id, sessionID string) error {
	return r.updates(r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id),
		map[string]interface{}{"stripe_session_id": sessionID})
}

func (r *GormOrderRepository) updates(query *gorm.DB, values map[string]interface{}) error {
	values["updated_at"] = now()
	res := query.Updates(values)
	if res.Error != nil {
		return unavailable("update order", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

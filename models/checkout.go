package models

import "time"

// CheckoutItem is a cart line as posted by the storefront. The product id
// arrives as "productId" from order clients and as "id" from the cart.
type CheckoutItem struct {
	ID          ProductRef `json:"id"`
	ProductID   ProductRef `json:"productId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price" binding:"gte=0"`
	Quantity    int        `json:"quantity,omitempty" binding:"gte=0"`
	Image       string     `json:"image,omitempty"`
}

// Ref returns the product id, preferring productId over id.
func (c CheckoutItem) Ref() ProductRef {
	if c.ProductID != "" {
		return c.ProductID
	}
	return c.ID
}

// ToOrderItem maps a storefront line onto the persisted order line.
func (c CheckoutItem) ToOrderItem() OrderItem {
	return OrderItem{
		ProductID: c.Ref(),
		Name:      c.Name,
		Price:     c.Price,
		Quantity:  c.Quantity,
		Image:     c.Image,
	}
}

// CreateOrderRequest is the payload for POST /create-order.
type CreateOrderRequest struct {
	UserID          string           `json:"userId"`
	Items           []CheckoutItem   `json:"items" binding:"required,min=1,dive"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
}

// CreateOrderResponse is returned once the pending order is stored.
type CreateOrderResponse struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message"`
}

// CreateCheckoutSessionRequest is the payload for POST /create-checkout-session.
// OrderID optionally ties the hosted session to a stored pending order.
type CreateCheckoutSessionRequest struct {
	Items   []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	OrderID string         `json:"orderId,omitempty"`
}

// CheckoutSession is the subset of the processor's session the storefront needs.
type CheckoutSession struct {
	ID  string  `json:"id"`
	URL *string `json:"url"`
}

// Order lifecycle event types.
const (
	OrderEventCreated   = "order_created"
	OrderEventCompleted = "order_completed"
	OrderEventCancelled = "order_cancelled"
)

// OrderEvent is published to the event bus on every lifecycle change.
type OrderEvent struct {
	Type            string      `json:"type"`
	OrderID         string      `json:"order_id"`
	UserID          string      `json:"user_id"`
	Status          OrderStatus `json:"status"`
	Total           float64     `json:"total"`
	StripeSessionID string      `json:"stripe_session_id,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
}

// NewOrderEvent builds the event for order in its current state.
func NewOrderEvent(eventType string, order *Order) OrderEvent {
	return OrderEvent{
		Type:            eventType,
		OrderID:         order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		Total:           order.Total,
		StripeSessionID: order.StripeSessionID,
		Timestamp:       time.Now().UTC(),
	}
}

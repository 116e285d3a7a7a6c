package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// transitions lists the statuses reachable from each status.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransitionTo reports whether s -> next is a legal lifecycle move.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProductRef is a product identifier that accepts either a JSON number or a
// JSON string. The storefront sends numeric catalogue ids.
type ProductRef string

func (p *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProductRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or a number: %w", err)
	}
	*p = ProductRef(n.String())
	return nil
}

// OrderItem is a single purchased line.
type OrderItem struct {
	ProductID ProductRef `json:"productId" bson:"productId" dynamodbav:"productId"`
	Name      string     `json:"name" bson:"name" dynamodbav:"name"`
	Price     float64    `json:"price" bson:"price" dynamodbav:"price"`
	Quantity  int        `json:"quantity" bson:"quantity" dynamodbav:"quantity"`
	Image     string     `json:"image,omitempty" bson:"image,omitempty" dynamodbav:"image,omitempty"`
}

// ShippingAddress is carried with the order and never interpreted.
type ShippingAddress struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty" dynamodbav:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty" dynamodbav:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty" dynamodbav:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty" bson:"zipCode,omitempty" dynamodbav:"zipCode,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty" dynamodbav:"country,omitempty"`
}

// Order is the persisted order record shared by every storage backend.
type Order struct {
	ID              string           `json:"id" bson:"_id" dynamodbav:"id" gorm:"type:varchar(64);primaryKey"`
	UserID          string           `json:"userId" bson:"userId" dynamodbav:"userId" gorm:"type:varchar(128);index"`
	Items           []OrderItem      `json:"items" bson:"items" dynamodbav:"items" gorm:"type:jsonb;serializer:json;not null"`
	Total           float64          `json:"total" bson:"total" dynamodbav:"total" gorm:"not null"`
	Status          OrderStatus      `json:"status" bson:"status" dynamodbav:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty" bson:"shippingAddress,omitempty" dynamodbav:"shippingAddress,omitempty" gorm:"type:jsonb;serializer:json"`
	StripeSessionID string           `json:"stripeSessionId,omitempty" bson:"stripeSessionId,omitempty" dynamodbav:"stripeSessionId,omitempty" gorm:"type:varchar(255);index"`
	CreatedAt       time.Time        `json:"createdAt" bson:"createdAt" dynamodbav:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updatedAt" dynamodbav:"updatedAt" gorm:"autoUpdateTime:false"`
}

// NormalizeItems returns a copy of items with a missing quantity defaulted to 1.
func NormalizeItems(items []OrderItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		out[i] = item
	}
	return out
}

// CalculateTotal sums price*quantity over items using decimal arithmetic so
// that e.g. 0.1*3 totals 0.3 rather than 0.30000000000000004.
func CalculateTotal(items []OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(qty))))
	}
	return total.InexactFloat64()
}

// ToMinorUnits converts a major-unit price to cents, rounding half away from zero.
func ToMinorUnits(price float64) int64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// String renders the product ref for logs and metadata.
func (p ProductRef) String() string { return string(p) }

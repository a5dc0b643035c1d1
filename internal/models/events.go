package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced           = "ORDER_PLACED"
	EventTypeOrderShipped          = "ORDER_SHIPPED"
	EventTypeOrderDelivered        = "ORDER_DELIVERED"
	EventTypeReturnRequested       = "ORDER_RETURN_REQUESTED"
	EventTypeOrderReturned         = "ORDER_RETURNED"
	EventTypeRentalExtended        = "RENTAL_EXTENDED"
	EventTypeOrderCancelled        = "ORDER_CANCELLED"
	EventTypeNotificationRequested = "NOTIFICATION_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is published after every committed lifecycle transition
type OrderEvent struct {
	BaseEvent
	OrderID         string          `json:"order_id"`
	BuyerID         string          `json:"buyer_id"`
	SellerID        string          `json:"seller_id"`
	ProductID       string          `json:"product_id"`
	OrderType       OrderType       `json:"order_type"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Deposit         decimal.Decimal `json:"deposit"`
	AdminCommission decimal.Decimal `json:"admin_commission"`
	SellerEarnings  decimal.Decimal `json:"seller_earnings"`
}

// NotificationRequestedEvent asks the notification worker to deliver a text
type NotificationRequestedEvent struct {
	BaseEvent
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

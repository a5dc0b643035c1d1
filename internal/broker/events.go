package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agrimart-orders/internal/models"
	"agrimart-orders/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter is satisfied by Producer
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// EventPublisher handles publishing order lifecycle events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

// PublishOrderEvent publishes a snapshot of order after a committed transition
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error {
	event := &models.OrderEvent{
		BaseEvent:       newBaseEvent(eventType),
		OrderID:         order.ID,
		BuyerID:         order.Buyer(),
		SellerID:        order.SellerID,
		ProductID:       order.ProductID,
		OrderType:       order.OrderType,
		Status:          order.Status,
		TotalAmount:     order.TotalAmount,
		Deposit:         order.Deposit,
		AdminCommission: order.AdminCommission,
		SellerEarnings:  order.SellerEarnings,
	}
	return ep.writer.PublishEvent(ctx, fmt.Sprintf("order-%s", order.ID), event)
}

// NotificationPublisher queues text notifications for the notification worker.
// Send never fails the caller; errors are logged and counted.
type NotificationPublisher struct {
	writer EventWriter
	logger *zap.Logger
}

// NewNotificationPublisher creates a new notification publisher
func NewNotificationPublisher(writer EventWriter) *NotificationPublisher {
	return &NotificationPublisher{writer: writer, logger: util.ComponentLogger("notifier")}
}

// Send queues text for delivery to phone
func (np *NotificationPublisher) Send(ctx context.Context, phone, text string) {
	if phone == "" {
		np.logger.Debug("Skipping notification without phone number")
		return
	}

	event := &models.NotificationRequestedEvent{
		BaseEvent: newBaseEvent(models.EventTypeNotificationRequested),
		Phone:     phone,
		Text:      text,
	}

	if err := np.writer.PublishEvent(ctx, phone, event); err != nil {
		util.NotificationsPublishFailed.Inc()
		np.logger.Warn("Failed to queue notification",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

// EventHandler routes incoming notification messages
type EventHandler struct {
	onNotificationRequested func(context.Context, *models.NotificationRequestedEvent) error
	logger                  *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("event-handler")}
}

// OnNotificationRequested registers a handler for NotificationRequested events
func (eh *EventHandler) OnNotificationRequested(handler func(context.Context, *models.NotificationRequestedEvent) error) {
	eh.onNotificationRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeNotificationRequested:
		if eh.onNotificationRequested != nil {
			var event models.NotificationRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal NotificationRequested event: %w", err)
			}
			return eh.onNotificationRequested(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

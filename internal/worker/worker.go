package worker

import (
	"context"
	"fmt"

	"agrimart-orders/internal/broker"
	"agrimart-orders/internal/models"
	"agrimart-orders/internal/notify"
	"agrimart-orders/internal/util"

	"go.uber.org/zap"
)

// EventLog records which events have already been handled
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker delivers queued notifications
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	events       EventLog
	sender       notify.Sender
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	events EventLog,
	sender notify.Sender,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		events:       events,
		sender:       sender,
		logger:       util.ComponentLogger("notification-worker"),
	}
	w.eventHandler.OnNotificationRequested(w.HandleNotification)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// HandleNotification delivers one notification at most once per event id.
// A delivery failure is returned so the consumer retries the message.
func (w *NotificationWorker) HandleNotification(ctx context.Context, event *models.NotificationRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "NotificationWorker.HandleNotification")
	defer span.End()

	processed, err := w.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		util.NotificationsDeliveredTotal.WithLabelValues("duplicate").Inc()
		w.logger.Debug("Notification already delivered", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.sender.Send(ctx, event.Phone, event.Text); err != nil {
		util.NotificationsDeliveredTotal.WithLabelValues("failed").Inc()
		w.logger.Warn("Notification delivery failed",
			zap.String("event_id", event.EventID),
			zap.String("to", notify.MaskPhone(event.Phone)),
			zap.Error(err))
		return err
	}
	util.NotificationsDeliveredTotal.WithLabelValues("sent").Inc()

	if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}

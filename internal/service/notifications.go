package service

import (
	"context"
	"fmt"
	"time"

	"agrimart-orders/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dispatchTimeout = 5 * time.Second

// Notifier delivers a text to a phone number. It must not block on delivery
// and has no failure mode visible to the caller.
type Notifier interface {
	Send(ctx context.Context, phone, text string)
}

// EventPublisher publishes committed lifecycle transitions
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error
}

type notification struct {
	phone string
	text  string
}

// outbox collects side effects inside a transaction; they are dispatched only
// after commit.
type outbox struct {
	notifications []notification
}

func (o *outbox) notify(phone, text string) {
	o.notifications = append(o.notifications, notification{phone: phone, text: text})
}

// dispatch sends queued notifications and the lifecycle event in the
// background. Failures are logged and never reach the caller.
func (s *OrderService) dispatch(ctx context.Context, eventType string, order *models.Order, out *outbox) {
	snapshot := *order
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()

		for _, n := range out.notifications {
			s.notifier.Send(ctx, n.phone, n.text)
		}

		if eventType == "" {
			return
		}
		if err := s.events.PublishOrderEvent(ctx, eventType, &snapshot); err != nil {
			s.logger.Error("Failed to publish order event",
				zap.String("order_id", snapshot.ID),
				zap.String("event_type", eventType),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every background dispatch has finished
func (s *OrderService) Wait() {
	s.pending.Wait()
}

func money(d decimal.Decimal) string {
	return "₹" + d.StringFixed(moneyPlaces)
}

func msgOrderPlacedBuyer(title string, qty int, total decimal.Decimal, otp string) string {
	return fmt.Sprintf("Order Placed: %s\nQty: %d\nAmount: %s\nDelivery OTP: %s", title, qty, money(total), otp)
}

func msgOrderPlacedSeller(title string, qty int, total decimal.Decimal) string {
	return fmt.Sprintf("New Order Received: %s\nQty: %d\nAmount: %s\nPlease prepare shipment.", title, qty, money(total))
}

func msgLowStock(title string, stock int) string {
	return fmt.Sprintf("Low Stock: '%s' only %d left.", title, stock)
}

func msgShipped(title, otp string) string {
	return fmt.Sprintf("Your order '%s' has been shipped. OTP: %s", title, otp)
}

func msgDeliveredBuyer(txID string) string {
	return fmt.Sprintf("Delivered & Payment recorded. Transaction: %s", txID)
}

func msgDeliveredSeller(earning decimal.Decimal, txID string) string {
	return fmt.Sprintf("Payment recorded. Earning: %s. Transaction: %s", money(earning), txID)
}

func msgReturnRequested(orderID, title, reason string) string {
	msg := fmt.Sprintf("Return requested for order %s - Product: %s", orderID, title)
	if reason != "" {
		msg += "\nReason: " + reason
	}
	return msg
}

func msgReturnAcceptedBuyer(title, orderID string) string {
	return fmt.Sprintf("Your return for %s has been accepted. Order: %s", title, orderID)
}

func msgReturnConfirmedSeller(orderID string) string {
	return fmt.Sprintf("You confirmed return for order %s", orderID)
}

func msgRentalExtendedBuyer(extraDays int, extraCost decimal.Decimal) string {
	return fmt.Sprintf("Rental extended by %d days. Extra charge: %s.", extraDays, money(extraCost))
}

func msgRentalExtendedSeller(orderID string, extraDays int) string {
	return fmt.Sprintf("Rental for order %s extended by %d days.", orderID, extraDays)
}

func msgCancelledBuyer(orderID string) string {
	return fmt.Sprintf("Your order %s has been cancelled.", orderID)
}

func msgCancelledSeller(orderID string) string {
	return fmt.Sprintf("Order %s has been cancelled by buyer.", orderID)
}

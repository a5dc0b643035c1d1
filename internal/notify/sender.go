package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Sender delivers a text message to a phone number
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// LogSender writes messages to the structured log instead of a carrier.
// Phone numbers are masked to their last four digits.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, phone, text string) error {
	s.logger.Info("Notification sent",
		zap.String("to", MaskPhone(phone)),
		zap.String("text", text))
	return nil
}

// MaskPhone hides all but the last four digits of phone
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

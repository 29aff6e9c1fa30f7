package notify

import (
	"context"

	"github.com/aurorabook/concierge/pkg/logging"
)

// SMSSender sends a plain-text SMS to a single recipient.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SimpleSMSSender adapts a provider-specific send function to SMSSender.
type SimpleSMSSender struct {
	from     string
	sendFunc func(ctx context.Context, to, from, body string) error
	logger   *logging.Logger
}

// NewSimpleSMSSender builds an SMSSender around a provider send function.
func NewSimpleSMSSender(from string, sendFunc func(ctx context.Context, to, from, body string) error, logger *logging.Logger) *SimpleSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimpleSMSSender{from: from, sendFunc: sendFunc, logger: logger}
}

func (s *SimpleSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if s.sendFunc == nil {
		s.logger.Warn("notify: SMS sender not configured")
		return nil
	}
	return s.sendFunc(ctx, to, s.from, body)
}

// StubSMSSender logs instead of sending, for deployments with no SMS
// provider configured.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("notify: stub SMS sender, would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// CompositeSender pairs an EmailSender with an SMSSender to satisfy
// booking.NotificationSender (SendSMS + SendEmail on one type), so
// internal/booking stays decoupled from which email/SMS providers a
// deployment actually wires in.
type CompositeSender struct {
	Email EmailSender
	SMS   SMSSender
}

func (c CompositeSender) SendSMS(ctx context.Context, to, body string) error {
	if c.SMS == nil {
		return nil
	}
	return c.SMS.SendSMS(ctx, to, body)
}

func (c CompositeSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if c.Email == nil {
		return nil
	}
	return c.Email.Send(ctx, EmailMessage{To: to, Subject: subject, HTML: htmlBody, Body: htmlBody})
}

var (
	_ SMSSender = (*SimpleSMSSender)(nil)
	_ SMSSender = (*StubSMSSender)(nil)
)

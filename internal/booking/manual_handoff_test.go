package booking

import (
	"context"
	"strings"
	"testing"
	"time"
)

type mockNotificationSender struct {
	smsCalls   []smsCall
	emailCalls []emailCall
	smsErr     error
	emailErr   error
}

type smsCall struct {
	To, Body string
}

type emailCall struct {
	To, Subject, HTMLBody string
}

func (m *mockNotificationSender) SendSMS(_ context.Context, to, body string) error {
	m.smsCalls = append(m.smsCalls, smsCall{To: to, Body: body})
	return m.smsErr
}

func (m *mockNotificationSender) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	m.emailCalls = append(m.emailCalls, emailCall{To: to, Subject: subject, HTMLBody: htmlBody})
	return m.emailErr
}

func TestTransferNotifier_NotifySMSAndEmail(t *testing.T) {
	sender := &mockNotificationSender{}
	cfg := TransferNotifyConfig{
		NotifyPhone: "+15551234567",
		NotifyEmail: "owner@clinic.example",
	}
	notifier := NewTransferNotifier(sender, cfg, nil)

	req := QualifiedRequest{
		TenantID:       7,
		ConvID:         "conv-789",
		BusinessName:   "Forever Young Clinic",
		PatientName:    "Jane Doe",
		PatientContact: "+15559876543",
		Motif:          "consultation",
		Preference:     "morning",
		CollectedAt:    time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC),
	}

	msg, err := notifier.Notify(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "Forever Young Clinic") {
		t.Errorf("handoff message should contain business name, got: %q", msg)
	}

	if len(sender.smsCalls) != 1 {
		t.Fatalf("expected 1 SMS call, got %d", len(sender.smsCalls))
	}
	if sender.smsCalls[0].To != "+15551234567" {
		t.Errorf("SMS sent to wrong number: %s", sender.smsCalls[0].To)
	}
	if !strings.Contains(sender.smsCalls[0].Body, "Jane Doe") {
		t.Error("SMS body should contain patient name")
	}

	if len(sender.emailCalls) != 1 {
		t.Fatalf("expected 1 email call, got %d", len(sender.emailCalls))
	}
	if sender.emailCalls[0].To != "owner@clinic.example" {
		t.Errorf("email sent to wrong address: %s", sender.emailCalls[0].To)
	}
}

func TestTransferNotifier_NoChannelsConfigured(t *testing.T) {
	sender := &mockNotificationSender{}
	notifier := NewTransferNotifier(sender, TransferNotifyConfig{}, nil)

	req := QualifiedRequest{BusinessName: "Test Clinic", CollectedAt: time.Now()}
	msg, err := notifier.Notify(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "Test Clinic") {
		t.Errorf("expected business name in message, got: %q", msg)
	}
	if len(sender.smsCalls) != 0 || len(sender.emailCalls) != 0 {
		t.Error("no notifications should be sent when no channels configured")
	}
}

func TestHandoffMessageFallback(t *testing.T) {
	msg := handoffMessage("")
	if !strings.Contains(msg, "the clinic") {
		t.Errorf("expected 'the clinic' fallback, got: %q", msg)
	}
}

func TestFormatQualifiedRequest(t *testing.T) {
	req := QualifiedRequest{
		PatientName:    "Jane Doe",
		PatientContact: "+15559876543",
		Motif:          "lip filler",
		Preference:     "afternoon",
		Notes:          "wants 1 syringe",
		CollectedAt:    time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC),
	}
	summary := FormatQualifiedRequest(req)
	for _, expected := range []string{"Jane Doe", "+15559876543", "lip filler", "afternoon", "wants 1 syringe"} {
		if !strings.Contains(summary, expected) {
			t.Errorf("summary missing %q:\n%s", expected, summary)
		}
	}
}

func TestFormatQualifiedRequestHTML(t *testing.T) {
	req := QualifiedRequest{
		PatientName: "Jane Doe",
		Motif:       "botox",
		CollectedAt: time.Now(),
	}
	out := FormatQualifiedRequestHTML(req)
	if !strings.Contains(out, "Jane Doe") {
		t.Error("HTML should contain patient name")
	}
	if !strings.Contains(out, "<table") {
		t.Error("HTML should contain a table")
	}
}

func TestFormatQualifiedRequestNAFallbacks(t *testing.T) {
	req := QualifiedRequest{CollectedAt: time.Now()}
	summary := FormatQualifiedRequest(req)
	if !strings.Contains(summary, "N/A") {
		t.Error("empty fields should show N/A")
	}
}

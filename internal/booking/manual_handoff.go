package booking

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aurorabook/concierge/pkg/logging"
)

// NotificationSender abstracts the channel used to notify the clinic when
// a qualified request cannot be auto-booked (provider=none, spec.md §4.9).
type NotificationSender interface {
	SendSMS(ctx context.Context, to, body string) error
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// TransferNotifyConfig holds the tenant-specific notification targets.
type TransferNotifyConfig struct {
	NotifyPhone string
	NotifyEmail string
}

// QualifiedRequest is the information gathered by the FSM before a
// provider=none tenant hands off to a human (spec.md §4.9's "UX: collecte
// demande + transfert humain", ported from
// original_source/backend/calendar_adapter.py's _NoneCalendarAdapter).
type QualifiedRequest struct {
	TenantID       int64
	ConvID         string
	BusinessName   string
	PatientName    string
	PatientContact string
	Motif          string
	Preference     string
	Notes          string
	CollectedAt    time.Time
}

// TransferNotifier pushes a qualified-request summary to the tenant via
// SMS/email so a human can complete the booking manually. Grounded on the
// teacher's ManualHandoffAdapter, generalized from LeadSummary to
// QualifiedRequest and from the booking-adapter interface to a standalone
// notifier NoneAdapter calls on transfer (spec.md §4.9).
type TransferNotifier struct {
	sender NotificationSender
	config TransferNotifyConfig
	logger *logging.Logger
}

func NewTransferNotifier(sender NotificationSender, cfg TransferNotifyConfig, logger *logging.Logger) *TransferNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &TransferNotifier{sender: sender, config: cfg, logger: logger}
}

// Notify sends the qualified-request summary over whatever channels are
// configured, returning a patient-facing handoff message regardless of
// whether the notification itself succeeded.
func (n *TransferNotifier) Notify(ctx context.Context, req QualifiedRequest) (string, error) {
	summary := FormatQualifiedRequest(req)
	var errs []string

	if n.config.NotifyPhone != "" && n.sender != nil {
		body := fmt.Sprintf("New booking request for %s\n\n%s", req.BusinessName, summary)
		if err := n.sender.SendSMS(ctx, n.config.NotifyPhone, body); err != nil {
			n.logger.Error("transfer notify: SMS failed", "error", err, "tenant_id", req.TenantID, "conv_id", req.ConvID)
			errs = append(errs, fmt.Sprintf("sms: %v", err))
		} else {
			n.logger.Info("transfer notify: SMS sent", "tenant_id", req.TenantID, "conv_id", req.ConvID, "to", n.config.NotifyPhone)
		}
	}

	if n.config.NotifyEmail != "" && n.sender != nil {
		subject := fmt.Sprintf("New booking request — %s", valueOrNA(req.PatientName))
		body := FormatQualifiedRequestHTML(req)
		if err := n.sender.SendEmail(ctx, n.config.NotifyEmail, subject, body); err != nil {
			n.logger.Error("transfer notify: email failed", "error", err, "tenant_id", req.TenantID, "conv_id", req.ConvID)
			errs = append(errs, fmt.Sprintf("email: %v", err))
		} else {
			n.logger.Info("transfer notify: email sent", "tenant_id", req.TenantID, "conv_id", req.ConvID, "to", n.config.NotifyEmail)
		}
	}

	if n.config.NotifyPhone == "" && n.config.NotifyEmail == "" {
		n.logger.Warn("transfer notify: no notification channels configured", "tenant_id", req.TenantID, "conv_id", req.ConvID)
	}

	message := handoffMessage(req.BusinessName)
	if len(errs) > 0 {
		return message, fmt.Errorf("booking: transfer notification errors: %s", strings.Join(errs, "; "))
	}
	return message, nil
}

func handoffMessage(businessName string) string {
	if businessName == "" {
		businessName = "the clinic"
	}
	return fmt.Sprintf(
		"Thank you! I've shared your information with %s and they'll reach out to confirm your appointment shortly.",
		businessName,
	)
}

// FormatQualifiedRequest generates a plain-text summary for SMS delivery.
func FormatQualifiedRequest(req QualifiedRequest) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Patient: %s\n", valueOrNA(req.PatientName)))
	b.WriteString(fmt.Sprintf("Contact: %s\n", valueOrNA(req.PatientContact)))
	b.WriteString(fmt.Sprintf("Reason: %s\n", valueOrNA(req.Motif)))
	if req.Preference != "" {
		b.WriteString(fmt.Sprintf("Preference: %s\n", req.Preference))
	}
	if req.Notes != "" {
		b.WriteString(fmt.Sprintf("Notes: %s\n", req.Notes))
	}
	b.WriteString(fmt.Sprintf("Collected: %s\n", req.CollectedAt.Format(time.RFC1123)))
	return b.String()
}

// FormatQualifiedRequestHTML generates the email-ready summary.
func FormatQualifiedRequestHTML(req QualifiedRequest) string {
	var notesRow string
	if req.Notes != "" {
		notesRow = fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">Notes</td><td style="padding:6px 12px;">%s</td></tr>`, html.EscapeString(req.Notes))
	}
	var prefRow string
	if req.Preference != "" {
		prefRow = fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">Preference</td><td style="padding:6px 12px;">%s</td></tr>`, html.EscapeString(req.Preference))
	}
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;">
<h2 style="color:#333;">New booking request</h2>
<table style="border-collapse:collapse;width:100%%;">
<tr><td style="padding:6px 12px;font-weight:bold;">Patient</td><td style="padding:6px 12px;">%s</td></tr>
<tr><td style="padding:6px 12px;font-weight:bold;">Contact</td><td style="padding:6px 12px;">%s</td></tr>
<tr><td style="padding:6px 12px;font-weight:bold;">Reason</td><td style="padding:6px 12px;">%s</td></tr>
%s
%s
<tr><td style="padding:6px 12px;font-weight:bold;">Collected</td><td style="padding:6px 12px;">%s</td></tr>
</table>
<p style="color:#666;font-size:12px;">This request was qualified by the booking assistant. Please reach out to confirm the appointment.</p>
</div>`,
		html.EscapeString(valueOrNA(req.PatientName)),
		html.EscapeString(valueOrNA(req.PatientContact)),
		html.EscapeString(valueOrNA(req.Motif)),
		prefRow,
		notesRow,
		req.CollectedAt.Format(time.RFC1123),
	)
}

func valueOrNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

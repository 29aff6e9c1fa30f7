// Package whatsapp implements the messaging-gateway channel adapter
// (spec.md §4.10, §6 "POST /v1/whatsapp/webhook"), grounded on
// original_source/backend/channels/whatsapp.py's Twilio WhatsApp
// integration: form-urlencoded webhooks (Body/From/To/MessageSid/
// NumMedia), a TwiML <Response><Message> reply, and signature validation
// generalized from the teacher's instagram.VerifySignature /
// payments.verifyStripeSignature HMAC idiom to the gateway's exact
// SHA-1-over-sorted-params/base64 scheme.
package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aurorabook/concierge/internal/channels"
	"github.com/aurorabook/concierge/internal/fsm"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
)

// Adapter implements channels.Adapter for WhatsApp via the Twilio-style
// messaging gateway. AuthToken, when set, is the per-tenant (or
// per-deployment) signing secret used by Validate; an empty AuthToken
// accepts every request, mirroring whatsapp.py's dev-mode fallback when
// TWILIO_AUTH_TOKEN is unset.
type Adapter struct {
	AuthToken string
}

var _ channels.Adapter = (*Adapter)(nil)

// ParseIncoming decodes a form-urlencoded Twilio WhatsApp webhook. It
// returns (nil, nil) for media-only messages with no text body, matching
// whatsapp.py's parse_incoming.
func (a *Adapter) ParseIncoming(r *http.Request) (*session.ChannelMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	// Re-attach the body so Validate (called before or after, depending on
	// the caller) can still read the raw bytes it needs for the signature.
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	text := form.Get("Body")
	from := strings.TrimPrefix(form.Get("From"), "whatsapp:")
	numMedia, _ := strconv.Atoi(form.Get("NumMedia"))

	if (numMedia > 0 && text == "") || text == "" || from == "" {
		return nil, nil
	}

	return &session.ChannelMessage{
		Channel:  tenancy.ChannelWhatsApp,
		ConvID:   "wa_" + from,
		UserText: text,
		Metadata: map[string]string{
			"from_number": from,
			"to_number":   strings.TrimPrefix(form.Get("To"), "whatsapp:"),
			"message_sid": form.Get("MessageSid"),
			"num_media":   form.Get("NumMedia"),
		},
		ReceivedAt: time.Now(),
	}, nil
}

// FormatResponse wraps the FSM's reply text in a TwiML <Response><Message>
// document, escaping the handful of characters XML requires.
func (a *Adapter) FormatResponse(reply *fsm.Reply) ([]byte, string) {
	text := ""
	if reply != nil {
		text = reply.Text
	}
	text = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
	doc := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<Response><Message>` + text + `</Message></Response>`
	return []byte(doc), "application/xml"
}

// Validate computes the HMAC-SHA1 signature Twilio-style gateways use:
// the full request URL concatenated with the form parameters in
// lexicographic key order (key+value, no separators), signed with
// AuthToken, base64-encoded and compared in constant time against the
// X-Twilio-Signature header (spec.md §6).
func (a *Adapter) Validate(r *http.Request, rawBody []byte) bool {
	if a.AuthToken == "" {
		return true
	}
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return false
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(publicURL(r))
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(a.AuthToken))
	mac.Write([]byte(sb.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// publicURL reconstructs the externally-visible request URL, since
// r.URL on the server side carries only path and query: the gateway
// signs the URL it actually called, which includes scheme and host.
func publicURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// Package voice implements the telephony-bridge channel adapter
// (spec.md §4.10, §6 "POST /v1/voice/webhook"), grounded on
// original_source/backend/channels/voice.py's Vapi webhook shape: a JSON
// body carrying message.type ("assistant-request" | "user-message" |
// other), call.id as the conversation id, and message.content as the
// caller's transcribed utterance.
package voice

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/aurorabook/concierge/internal/channels"
	"github.com/aurorabook/concierge/internal/fsm"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
)

// webhookMessage is the "message" object of a Vapi server-message webhook.
type webhookMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// webhookCall carries the call identifiers Vapi attaches to every message.
// PhoneNumber is the DID the caller dialed, used downstream to resolve the
// owning tenant by inbound number (spec.md §4.1).
type webhookCall struct {
	ID          string          `json:"id"`
	PhoneNumber webhookDIDField `json:"phoneNumber"`
}

type webhookDIDField struct {
	Number string `json:"number"`
}

// webhookBody is the full Vapi server-message payload.
type webhookBody struct {
	Message webhookMessage `json:"message"`
	Call    webhookCall    `json:"call"`
}

// resultsDoc is the response shape Vapi expects back: either a spoken
// utterance or an empty results list for events the agent has nothing to
// say about.
type resultsDoc struct {
	Results []resultEntry `json:"results"`
}

type resultEntry struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Adapter implements channels.Adapter for the voice/telephony-bridge
// surface. SharedSecret, when set, is compared against the
// X-Voice-Webhook-Secret header in constant time; original_source left
// this an unconditional-accept stub (a TODO for future HMAC/IP/shared
// secret validation), so an empty SharedSecret preserves that behavior for
// tenants that have not configured one.
type Adapter struct {
	SharedSecret string
}

var _ channels.Adapter = (*Adapter)(nil)

// ParseIncoming extracts a normalized ChannelMessage from a Vapi
// server-message webhook. It returns (nil, nil) — not an error — for
// message types the agent has nothing to act on (e.g.
// "assistant-request", status updates), mirroring voice.py's parse_incoming
// returning None for those cases.
func (a *Adapter) ParseIncoming(r *http.Request) (*session.ChannelMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var wh webhookBody
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, err
	}

	if wh.Message.Type != "user-message" {
		return nil, nil
	}
	if wh.Call.ID == "" || wh.Message.Content == "" {
		return nil, nil
	}

	return &session.ChannelMessage{
		Channel:    tenancy.ChannelVoice,
		ConvID:     wh.Call.ID,
		UserText:   wh.Message.Content,
		Metadata:   map[string]string{"vapi_message_type": wh.Message.Type, "to_number": wh.Call.PhoneNumber.Number},
		ReceivedAt: time.Now(),
	}, nil
}

// FormatResponse builds the Vapi results document: a single "say" result
// carrying the FSM's reply text, or an empty results list when the FSM
// produced nothing to speak.
func (a *Adapter) FormatResponse(reply *fsm.Reply) ([]byte, string) {
	doc := resultsDoc{}
	if reply != nil && reply.Text != "" {
		doc.Results = []resultEntry{{Type: "say", Text: reply.Text}}
	}
	blob, _ := json.Marshal(doc)
	return blob, "application/json"
}

// Validate compares the configured shared secret against the inbound
// request's X-Voice-Webhook-Secret header in constant time. No secret
// configured accepts every request, matching voice.py's current MVP
// validation stance.
func (a *Adapter) Validate(r *http.Request, _ []byte) bool {
	if a.SharedSecret == "" {
		return true
	}
	got := r.Header.Get("X-Voice-Webhook-Secret")
	if got == "" {
		return false
	}
	expected := sha256.Sum256([]byte(a.SharedSecret))
	gotSum := sha256.Sum256([]byte(got))
	return hmac.Equal(expected[:], gotSum[:])
}

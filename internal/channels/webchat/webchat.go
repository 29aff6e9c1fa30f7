// Package webchat implements the browser-widget channel adapter
// (spec.md §4.10, §6 "POST /v1/chat"), grounded on the teacher's
// internal/webchat package: a JSON request/reply pair for the baseline
// surface, with an optional gorilla/websocket upgrade for low-latency
// typing indicators that mirrors the teacher's session-map idiom without
// being required for correctness.
package webchat

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/aurorabook/concierge/internal/channels"
	"github.com/aurorabook/concierge/internal/fsm"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
)

// inboundRequest is the JSON body POST /v1/chat accepts.
type inboundRequest struct {
	ConvID    string `json:"conv_id"`
	Text      string `json:"text"`
	TenantKey string `json:"tenant_key"`
}

// outboundReply is the JSON body POST /v1/chat returns.
type outboundReply struct {
	Text   string `json:"text"`
	State  string `json:"state"`
	ConvID string `json:"conv_id"`
}

// Adapter implements channels.Adapter for the web-chat widget surface.
// TenantKeys, when non-empty, restricts Validate to requests whose
// tenant_key field names a configured tenant API key; an empty set
// accepts every request, matching the other channel adapters' permissive
// default when no secret has been provisioned for a deployment.
type Adapter struct {
	TenantKeys map[string]bool
}

var _ channels.Adapter = (*Adapter)(nil)

// ParseIncoming decodes the widget's JSON request body. The tenant_key
// field is carried through Metadata so the caller can resolve it via
// tenancy.Resolver.ResolveByAPIKey before handing the turn to the FSM.
func (a *Adapter) ParseIncoming(r *http.Request) (*session.ChannelMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var req inboundRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if req.Text == "" || req.ConvID == "" {
		return nil, nil
	}

	return &session.ChannelMessage{
		Channel:    tenancy.ChannelWeb,
		ConvID:     req.ConvID,
		UserText:   req.Text,
		Metadata:   map[string]string{"tenant_key": req.TenantKey},
		ReceivedAt: time.Now(),
	}, nil
}

// FormatResponse builds the widget's JSON reply.
func (a *Adapter) FormatResponse(reply *fsm.Reply) ([]byte, string) {
	out := outboundReply{}
	if reply != nil {
		out.Text = reply.Text
		out.State = string(reply.State)
	}
	blob, _ := json.Marshal(out)
	return blob, "application/json"
}

// Validate checks the request's tenant_key against the configured key
// set, without unmarshaling the full body beyond what is needed to read
// that one field.
func (a *Adapter) Validate(_ *http.Request, rawBody []byte) bool {
	if len(a.TenantKeys) == 0 {
		return true
	}
	var probe struct {
		TenantKey string `json:"tenant_key"`
	}
	if err := json.Unmarshal(rawBody, &probe); err != nil {
		return false
	}
	return a.TenantKeys[probe.TenantKey]
}

// Package channels defines the wire-format contract each inbound surface
// (voice, whatsapp, webchat) implements (spec.md §4.10), grounded on the
// teacher's per-channel packages (internal/channels/instagram,
// internal/webchat): parsing, formatting and signature validation are
// pure operations, kept separate from the FSM they front.
package channels

import (
	"net/http"

	"github.com/aurorabook/concierge/internal/fsm"
	"github.com/aurorabook/concierge/internal/session"
)

// Adapter turns one channel's wire format into a normalized inbound
// message and back. Validate MUST run against the raw, unparsed body —
// computing a signature after JSON/form decoding defeats the point.
type Adapter interface {
	ParseIncoming(r *http.Request) (*session.ChannelMessage, error)
	FormatResponse(reply *fsm.Reply) (body []byte, contentType string)
	Validate(r *http.Request, rawBody []byte) bool
}

package webchat

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aurorabook/concierge/internal/fsm"
	"github.com/aurorabook/concierge/pkg/logging"
)

// StreamHub upgrades an optional WebSocket connection per conversation so
// the widget can show typing indicators while the FSM is working, mirroring
// the teacher's internal/webchat session-map idiom (conv id -> active
// connection) but built on gorilla/websocket rather than the teacher's
// golang.org/x/net/websocket. POST /v1/chat remains the reliable path;
// this is a latency nicety, never required for correctness (spec.md §4.10).
type StreamHub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

// NewStreamHub builds a hub that accepts upgrades only from the given
// origins; an empty list accepts any origin (same-origin widget embeds).
func NewStreamHub(allowedOrigins []string, logger *logging.Logger) *StreamHub {
	if logger == nil {
		logger = logging.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &StreamHub{
		logger: logger,
		conns:  make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleStream upgrades the request and registers the connection under
// conv_id until the widget disconnects.
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conv_id")
	if convID == "" {
		http.Error(w, "conv_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("webchat stream: upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[convID] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[convID] == conn {
			delete(h.conns, convID)
		}
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NotifyTyping pushes a typing indicator to an active stream, best-effort:
// a widget with no open stream simply never sees it.
func (h *StreamHub) NotifyTyping(convID string) {
	h.send(convID, map[string]string{"type": "typing"})
}

// PushReply sends a completed FSM reply to an active stream, best-effort.
func (h *StreamHub) PushReply(convID string, reply *fsm.Reply) {
	if reply == nil {
		return
	}
	h.send(convID, map[string]string{
		"type":  "message",
		"text":  reply.Text,
		"state": string(reply.State),
	})
}

func (h *StreamHub) send(convID string, payload map[string]string) {
	h.mu.RLock()
	conn, ok := h.conns[convID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := conn.WriteJSON(payload); err != nil {
		h.logger.Debug("webchat stream: write failed", "conv_id", convID, "error", err)
	}
}

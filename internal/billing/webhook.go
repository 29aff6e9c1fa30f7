package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aurorabook/concierge/internal/idempotency"
	"github.com/aurorabook/concierge/pkg/logging"
)

// WebhookHandler processes the payment provider's subscription webhook
// (spec.md §4.11, §6 "POST /v1/payment/webhook").
type WebhookHandler struct {
	secret string
	ledger *idempotency.Ledger
	store  Store
	logger *logging.Logger
}

func NewWebhookHandler(secret string, ledger *idempotency.Ledger, store Store, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{secret: secret, ledger: ledger, store: store, logger: logger}
}

// event is the subset of the provider's webhook envelope this handler reads.
type event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID                 string             `json:"id"`
			Subscription       string             `json:"subscription"`
			Status             string             `json:"status"`
			Items              []subscriptionItem `json:"items"`
			CurrentPeriodStart int64              `json:"current_period_start"`
			CurrentPeriodEnd   int64              `json:"current_period_end"`
			Metadata           map[string]string  `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type subscriptionItem struct {
	ID    string `json:"id"`
	Price struct {
		ID       string `json:"id"`
		Product  string `json:"product"`
		Nickname string `json:"nickname"`
	} `json:"price"`
}

// Handle verifies the signature against the raw body, reserves the event
// id in the idempotency ledger, and dispatches by event kind. Per
// spec.md §4.11: on a conflicting (already-seen) event id, it returns
// success without reprocessing; on a bad signature, 400.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifySignature(h.secret, payload, r.Header.Get("Payment-Provider-Signature")) {
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ledgerKey := idempotency.Key(0, "payment_webhook", evt.ID)
	if err := h.ledger.Reserve(r.Context(), ledgerKey); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyUsed) {
			writeReceived(w)
			return
		}
		h.logger.Error("payment webhook: ledger reserve failed", "error", err, "event_id", evt.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	tenantID, err := tenantIDFromMetadata(evt.Data.Object.Metadata)
	if err != nil {
		h.logger.Warn("payment webhook: missing tenant metadata", "event_id", evt.ID, "type", evt.Type)
		writeReceived(w) // acknowledge, nothing we can act on
		return
	}

	if err := h.dispatch(r.Context(), evt, tenantID); err != nil {
		h.logger.Error("payment webhook: dispatch failed", "error", err, "event_id", evt.ID, "type", evt.Type)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeReceived(w)
}

func (h *WebhookHandler) dispatch(ctx context.Context, evt event, tenantID int64) error {
	obj := evt.Data.Object
	switch evt.Type {
	case "customer.subscription.created", "customer.subscription.updated", "checkout.session.completed":
		sub := Subscription{
			TenantID:           tenantID,
			Status:             Status(obj.Status),
			SubscriptionID:     firstNonEmpty(obj.Subscription, obj.ID),
			CurrentPeriodStart: time.Unix(obj.CurrentPeriodStart, 0).UTC(),
			CurrentPeriodEnd:   time.Unix(obj.CurrentPeriodEnd, 0).UTC(),
		}
		if len(obj.Items) > 0 {
			sub.MeteredItemID = obj.Items[0].ID
			sub.Plan = obj.Items[0].Price.Nickname
		}
		if evt.Type == "checkout.session.completed" {
			// Checkout completion carries no subscription status of its
			// own; treat it as the start of an active subscription.
			if sub.Status == "" {
				sub.Status = StatusActive
			}
		}
		if err := h.store.UpsertSubscription(ctx, sub); err != nil {
			return err
		}
		return h.maybeReactivate(ctx, tenantID, sub.Status)

	case "customer.subscription.deleted":
		return h.store.ClearSubscription(ctx, tenantID, StatusCanceled)

	case "invoice.payment_failed":
		return h.store.SetStatus(ctx, tenantID, StatusPastDue)

	default:
		return nil
	}
}

// maybeReactivate clears a suspension once billing status returns to
// active/trialing (spec.md §4.11 step 4).
func (h *WebhookHandler) maybeReactivate(ctx context.Context, tenantID int64, status Status) error {
	if status != StatusActive && status != StatusTrialing {
		return nil
	}
	suspended, err := h.store.IsSuspended(ctx, tenantID)
	if err != nil || !suspended {
		return err
	}
	return h.store.Reactivate(ctx, tenantID)
}

func tenantIDFromMetadata(meta map[string]string) (int64, error) {
	raw, ok := meta["tenant_id"]
	if !ok || raw == "" {
		return 0, fmt.Errorf("billing: no tenant_id in webhook metadata")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("billing: invalid tenant_id %q: %w", raw, err)
	}
	return id, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// verifySignature verifies the provider's HMAC-SHA256-over-timestamp.payload
// scheme, grounded directly on the teacher's verifyStripeSignature
// (internal/payments/webhook_stripe.go): header shape
// "t=<unix>,v1=<hex hmac>[,v0=...]", 5-minute timestamp tolerance,
// constant-time comparison.
func verifySignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true // dev mode, no secret configured
	}
	if header == "" {
		return false
	}

	var timestamp string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if timestamp == "" || len(sigs) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

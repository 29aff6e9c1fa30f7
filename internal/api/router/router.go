// Package router builds the chi-based HTTP surface (spec.md §6): the three
// inbound channel webhooks that front the FSM engine, the payment-provider
// webhook, and liveness/readiness checks. Grounded on the teacher's
// internal/api/router package — chi, a per-request middleware chain, and a
// readiness handler that probes each live dependency — generalized from a
// medspa-specific route table to the channel-adapter contract in
// internal/channels.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aurorabook/concierge/internal/billing"
	"github.com/aurorabook/concierge/internal/channels"
	"github.com/aurorabook/concierge/internal/fsm"
	httpmiddleware "github.com/aurorabook/concierge/internal/http/middleware"
	"github.com/aurorabook/concierge/internal/observability/metrics"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/pkg/logging"
)

// Config holds every dependency the HTTP surface needs (spec.md §6).
type Config struct {
	Logger  *logging.Logger
	Engine  *fsm.Engine
	Tenants tenancy.Resolver
	Metrics *metrics.EngineMetrics

	VoiceAdapter    channels.Adapter
	WhatsAppAdapter channels.Adapter
	WebchatAdapter  channels.Adapter

	BillingWebhook *billing.WebhookHandler

	CORSAllowedOrigins []string

	// AdminJWTSecret, when set, gates /metrics behind the admin JWT
	// middleware — metrics cardinality can leak tenant volumes, so it is
	// not a fully public endpoint once an operator has configured auth.
	AdminJWTSecret string

	// Readiness check dependencies.
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// New builds the full chi router for the concierge API (spec.md §6).
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler)
	r.Get("/ready", readinessHandler(cfg))

	if cfg.AdminJWTSecret != "" {
		r.With(httpmiddleware.AdminJWT(cfg.AdminJWTSecret)).Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.RateLimit(50, 100))

		if cfg.VoiceAdapter != nil {
			public.Post("/v1/voice/webhook", channelHandler(cfg, cfg.VoiceAdapter, tenancy.ChannelVoice))
		}
		if cfg.WhatsAppAdapter != nil {
			public.Post("/v1/whatsapp/webhook", channelHandler(cfg, cfg.WhatsAppAdapter, tenancy.ChannelWhatsApp))
		}
		if cfg.WebchatAdapter != nil {
			public.Post("/v1/chat", channelHandler(cfg, cfg.WebchatAdapter, tenancy.ChannelWeb))
		}
		if cfg.BillingWebhook != nil {
			public.Post("/v1/payment/webhook", cfg.BillingWebhook.Handle)
		}
	})

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// readinessHandler returns 200 only when every configured dependency
// answers, mirroring the teacher's readiness probe shape.
func readinessHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		ready := true

		if cfg.DB != nil {
			if err := cfg.DB.Ping(r.Context()); err != nil {
				checks["database"] = "unhealthy: " + err.Error()
				ready = false
			} else {
				checks["database"] = "ok"
			}
		} else {
			checks["database"] = "not configured"
		}

		if cfg.Redis != nil {
			if err := cfg.Redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy: " + err.Error()
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		} else {
			checks["redis"] = "not configured"
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{"ready": ready, "checks": checks})
	}
}

// channelHandler wraps a channel adapter's parse/validate/format contract
// around the FSM engine (spec.md §4.10, §4.8): the raw body is read once so
// signature validation sees exactly the bytes the remote sent, the owning
// tenant is resolved (C1), one FSM turn runs, and the reply is formatted
// back into the channel's wire shape.
func channelHandler(cfg *Config, adapter channels.Adapter, channel tenancy.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "cannot read body", http.StatusBadRequest)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		if !adapter.Validate(r, body) {
			http.Error(w, "signature validation failed", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		msg, err := adapter.ParseIncoming(r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if msg == nil {
			// Nothing to act on (status update, media-only message, an
			// assistant-config probe) — still acknowledge so the gateway
			// does not retry.
			blob, contentType := adapter.FormatResponse(nil)
			w.Header().Set("Content-Type", contentType)
			w.Write(blob)
			return
		}

		tenantID, err := resolveTenant(r.Context(), cfg.Tenants, channel, msg)
		if err != nil {
			http.Error(w, "unknown tenant", http.StatusUnauthorized)
			return
		}

		start := time.Now()
		reply, err := cfg.Engine.HandleTurn(r.Context(), tenantID, msg.ConvID, fsm.Turn{
			UserText: msg.UserText,
			Channel:  channel,
			Metadata: msg.Metadata,
		})
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("engine turn failed", "error", err, "channel", string(channel), "conv_id", msg.ConvID)
			}
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		if cfg.Metrics != nil {
			cfg.Metrics.ObserveTurn(string(channel), string(reply.State), time.Since(start).Seconds())
		}

		blob, contentType := adapter.FormatResponse(reply)
		w.Header().Set("Content-Type", contentType)
		w.Write(blob)
	}
}

// resolveTenant maps a parsed inbound message to its owning tenant (C1):
// webchat carries an explicit tenant_key (spec.md §6), voice and whatsapp
// route by the number the caller dialed.
func resolveTenant(ctx context.Context, tenants tenancy.Resolver, channel tenancy.Channel, msg *session.ChannelMessage) (int64, error) {
	if channel == tenancy.ChannelWeb {
		return tenants.ResolveByAPIKey(ctx, msg.Metadata["tenant_key"])
	}
	e164, err := tenancy.NormalizeE164(msg.Metadata["to_number"])
	if err != nil {
		return 0, err
	}
	return tenants.ResolveByInboundNumber(ctx, channel, e164)
}

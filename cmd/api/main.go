// Command api is the concierge service's HTTP entrypoint: it wires every
// collaborator named in spec.md §4 (tenant resolver, session store, call
// journal, booking selector, FSM engine, channel adapters, billing
// webhook) and serves the router built in internal/api/router. Grounded
// on the teacher's cmd/api/main.go composition root — load config, open
// the Postgres pool and Redis client, build each dependency, hand them to
// the router, then run an HTTP server with graceful shutdown on SIGINT/
// SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/aurorabook/concierge/internal/api/router"
	"github.com/aurorabook/concierge/internal/billing"
	"github.com/aurorabook/concierge/internal/booking"
	"github.com/aurorabook/concierge/internal/calllock"
	"github.com/aurorabook/concierge/internal/channels/voice"
	"github.com/aurorabook/concierge/internal/channels/webchat"
	"github.com/aurorabook/concierge/internal/channels/whatsapp"
	appconfig "github.com/aurorabook/concierge/internal/config"
	"github.com/aurorabook/concierge/internal/fsm"
	"github.com/aurorabook/concierge/internal/idempotency"
	"github.com/aurorabook/concierge/internal/journal"
	"github.com/aurorabook/concierge/internal/notify"
	"github.com/aurorabook/concierge/internal/observability/metrics"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := connectPostgresPool(appCtx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if pool == nil && cfg.MultiTenantMode {
		logger.Warn("no database configured, forcing single-tenant/dev mode")
		cfg.MultiTenantMode = false
	}

	sessions := buildSessionStore(pool, cfg, logger)
	lock := buildCallLock(pool, cfg)
	callJournal := buildJournal(pool, cfg, logger)
	tenants := buildTenantResolver(pool, cfg, logger)
	selector := buildBookingSelector(pool, cfg)
	transfer := buildTransferNotifier(cfg, logger)
	ledger := buildIdempotencyLedger(appCtx, cfg, logger)
	audit := fsm.NewLogAuditSink(logger)

	engine := fsm.NewEngine(sessions, lock, callJournal, tenants, selector, transfer, ledger, audit, logger)
	if redisClient != nil {
		engine.FlagCache = tenancy.NewFlagCache(redisClient)
	}

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	var billingWebhook *billing.WebhookHandler
	if pool != nil {
		billingStore := billing.NewPGStore(pool)
		billingWebhook = billing.NewWebhookHandler(cfg.PaymentProviderWebhookKey, ledger, billingStore, logger)
	} else {
		logger.Warn("no database configured, payment webhook route disabled")
	}

	routerCfg := &router.Config{
		Logger:             logger,
		Engine:             engine,
		Tenants:            tenants,
		Metrics:            engineMetrics,
		VoiceAdapter:       &voice.Adapter{SharedSecret: cfg.VoiceWebhookSecret},
		WhatsAppAdapter:    &whatsapp.Adapter{AuthToken: cfg.WhatsAppWebhookSecret},
		WebchatAdapter:     &webchat.Adapter{},
		BillingWebhook:     billingWebhook,
		CORSAllowedOrigins: append(append([]string{}, cfg.CORSAllowedOrigins...), cfg.WebChatAllowedOrigins...),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		DB:                 pool,
		Redis:              redisClient,
	}

	handler := router.New(routerCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("concierge api listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}()

	<-appCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// connectPostgresPool opens the shared pgx pool used by sessions, the
// call journal, tenancy and billing. An empty URL returns nil so the
// service can still run in a degraded single-tenant/dev mode.
func connectPostgresPool(ctx context.Context, dbURL string, logger *logging.Logger) *pgxpool.Pool {
	if dbURL == "" {
		logger.Warn("DATABASE_URL not set, running without durable storage")
		return nil
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func connectRedis(cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable at startup, continuing in degraded mode", "error", err)
	}
	return client
}

func buildSessionStore(pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) session.Store {
	var checkpoints session.CheckpointLoader
	if pool != nil {
		checkpoints = journal.NewPGJournal(pool)
	}
	return session.NewHybridStore(pool, checkpoints, cfg.MultiTenantMode, logger)
}

// noopLock degrades call concurrency protection to a no-op when no
// durable pool is configured (single-tenant/dev mode only).
type noopLock struct{}

func (noopLock) Acquire(context.Context, int64, string) (func(), error) { return func() {}, nil }

func buildCallLock(pool *pgxpool.Pool, cfg *appconfig.Config) calllock.Lock {
	if pool == nil {
		return noopLock{}
	}
	return calllock.NewPGLock(pool, cfg.CallLockTimeout.String())
}

func buildJournal(pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) journal.Journal {
	if pool == nil {
		logger.Warn("no database configured, call journal is in-memory only")
		return newMemJournal()
	}
	pg := journal.NewPGJournal(pool)
	if !cfg.UsePGCallJournal {
		return pg
	}
	return journal.NewDegrading(pg, cfg.TransientRetryWait, logger)
}

// memJournal is a process-local stand-in for the PG-backed journal, used
// only when no database is configured (single-tenant/dev mode).
type memJournal struct {
	mu  sync.Mutex
	seq map[string]int64
}

func newMemJournal() *memJournal { return &memJournal{seq: make(map[string]int64)} }

func (m *memJournal) key(tenantID int64, callID string) string {
	return fmt.Sprintf("%d#%s", tenantID, callID)
}

func (m *memJournal) NextSeq(_ context.Context, tenantID int64, callID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(tenantID, callID)
	m.seq[k]++
	return m.seq[k], nil
}

func (m *memJournal) AppendMessage(_ context.Context, tenantID int64, callID string, _ journal.Role, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(tenantID, callID)
	m.seq[k]++
	return m.seq[k], nil
}

func (m *memJournal) WriteCheckpoint(context.Context, int64, string, int64, json.RawMessage) error {
	return nil
}

func (m *memJournal) LoadLatestCheckpoint(context.Context, int64, string) (int64, json.RawMessage, bool, error) {
	return 0, nil, false, nil
}

func (m *memJournal) EndCall(context.Context, int64, string) error { return nil }

var _ journal.Journal = (*memJournal)(nil)

func buildTenantResolver(pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) tenancy.Resolver {
	if pool != nil && cfg.UsePGTenants {
		return tenancy.NewPGResolver(pool)
	}
	logger.Warn("running with the in-memory tenant resolver, no tenants configured")
	return tenancy.NewStaticResolver()
}

func buildBookingSelector(pool *pgxpool.Pool, cfg *appconfig.Config) *booking.Selector {
	var internal *booking.InternalSlotAdapter
	if pool != nil {
		internal = booking.NewInternalSlotAdapter(pool)
	}
	return booking.NewSelector(cfg.CalendarProviderBaseURL, cfg.CalendarProviderClientSecret, internal)
}

func buildTransferNotifier(cfg *appconfig.Config, logger *logging.Logger) *booking.TransferNotifier {
	sender := notify.CompositeSender{
		SMS:   notify.NewStubSMSSender(logger),
		Email: buildEmailSender(cfg, logger),
	}
	return booking.NewTransferNotifier(sender, booking.TransferNotifyConfig{}, logger)
}

func buildEmailSender(cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if cfg.SendGridAPIKey != "" {
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	if cfg.SESFromEmail != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err == nil {
			if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SESFromName,
			}, logger); sender != nil {
				return sender
			}
		}
	}
	return notify.NewStubEmailSender(logger)
}

func buildIdempotencyLedger(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *idempotency.Ledger {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("failed to load AWS config, idempotency ledger will reject every reservation", "error", err)
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return idempotency.NewLedger(client, cfg.IdempotencyTable, 0)
}

func loadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "",
		)))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

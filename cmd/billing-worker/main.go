// Command billing-worker runs the two daily billing batch jobs spec.md
// §4.11 names: suspending tenants whose grace period has lapsed, and
// pushing metered usage to the payment provider. An external scheduler
// (cron, an ECS scheduled task) invokes this binary once a day; it does
// not run its own in-process cron loop, the same posture the teacher
// takes toward its own batch/report commands.
package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurorabook/concierge/internal/billing"
	appconfig "github.com/aurorabook/concierge/internal/config"
	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/pkg/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PGBillingURL)
	if err != nil {
		logger.Error("billing-worker: cannot open postgres pool", "error", err)
		return
	}
	defer pool.Close()

	store := billing.NewPGStore(pool)

	var flagCache *tenancy.FlagCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		flagCache = tenancy.NewFlagCache(rdb)
	}

	now := time.Now().UTC()

	runSuspensionJob(ctx, store, flagCache, cfg.BillingGracePeriod, now, logger)
	runUsagePushJob(ctx, store, cfg.PaymentProviderSecretKey, now, logger)
}

// runSuspensionJob suspends every tenant due as of now, then invalidates
// the tenant-flag cache for each so the FSM's next turn re-reads the
// fresh suspended status from Postgres instead of a stale cached "active"
// (spec.md §5 "tenant-flag cache").
func runSuspensionJob(ctx context.Context, store billing.Store, flagCache *tenancy.FlagCache, grace time.Duration, now time.Time, logger *logging.Logger) {
	due, err := store.DueForSuspension(ctx, now, grace)
	if err != nil {
		logger.Error("billing-worker: list due-for-suspension failed", "error", err)
		return
	}

	job := billing.NewSuspensionJob(store, grace, logger)
	if err := job.Run(ctx, now); err != nil {
		logger.Error("billing-worker: suspension job failed", "error", err)
		return
	}

	if flagCache == nil {
		return
	}
	for _, tenantID := range due {
		if err := flagCache.Invalidate(ctx, tenantID); err != nil {
			logger.Warn("billing-worker: flag cache invalidate failed", "error", err, "tenant_id", tenantID)
		}
	}
}

func runUsagePushJob(ctx context.Context, store billing.Store, stripeSecretKey string, now time.Time, logger *logging.Logger) {
	reporter := billing.NewStripeUsageReporter(stripeSecretKey)
	job := billing.NewUsagePushJob(store, reporter, logger)
	if err := job.Run(ctx, now); err != nil {
		logger.Error("billing-worker: usage push job failed", "error", err)
	}
}

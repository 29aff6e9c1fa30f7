package billing

import (
	"context"
	"time"

	"github.com/aurorabook/concierge/pkg/logging"
)

// UsageReporter pushes a metered-usage quantity to the payment provider's
// subscription-item usage record (e.g. Stripe's UsageRecord.create with
// action=set), grounded on original_source/backend/stripe_usage.py.
type UsageReporter interface {
	SetUsage(ctx context.Context, meteredItemID string, minutes int, endOfDay time.Time) error
}

// UsagePushJob runs daily (invoked by cmd/billing-worker) to push the
// prior day's per-tenant call minutes to the payment provider, plus
// reattempt the day before that if it is still marked failed — yielding
// at-least-48h retry without revenue loss on a one-day provider outage
// (spec.md §4.11), grounded on
// original_source/backend/stripe_usage.py's push_daily_usage_with_retry_48h.
type UsagePushJob struct {
	store    Store
	reporter UsageReporter
	logger   *logging.Logger
}

func NewUsagePushJob(store Store, reporter UsageReporter, logger *logging.Logger) *UsagePushJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &UsagePushJob{store: store, reporter: reporter, logger: logger}
}

// Run pushes usage for yesterday and retries the day before yesterday.
func (j *UsagePushJob) Run(ctx context.Context, today time.Time) error {
	yesterday := today.AddDate(0, 0, -1)
	dayBefore := today.AddDate(0, 0, -2)

	if err := j.pushDay(ctx, yesterday); err != nil {
		j.logger.Error("usage push job: yesterday failed", "error", err, "day", yesterday.Format("2006-01-02"))
	}
	if err := j.pushDay(ctx, dayBefore); err != nil {
		j.logger.Error("usage push job: retry day-before failed", "error", err, "day", dayBefore.Format("2006-01-02"))
	}
	return nil
}

func (j *UsagePushJob) pushDay(ctx context.Context, day time.Time) error {
	minutesByTenant, err := j.store.DailyMinutes(ctx, day)
	if err != nil {
		return err
	}

	var pushed, skipped int
	for tenantID, minutes := range minutesByTenant {
		if minutes <= 0 {
			continue
		}
		meteredItemID, err := j.store.MeteredItemID(ctx, tenantID)
		if err != nil || meteredItemID == "" {
			skipped++
			continue
		}

		acquired, err := j.store.AcquireUsagePush(ctx, tenantID, day, minutes)
		if err != nil {
			j.logger.Error("usage push job: acquire failed", "error", err, "tenant_id", tenantID)
			continue
		}
		if !acquired {
			skipped++
			continue
		}

		endOfDay := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
		if err := j.reporter.SetUsage(ctx, meteredItemID, minutes, endOfDay); err != nil {
			if markErr := j.store.MarkUsagePushFailed(ctx, tenantID, day, err.Error()); markErr != nil {
				j.logger.Error("usage push job: mark failed error", "error", markErr, "tenant_id", tenantID)
			}
			j.logger.Warn("usage push job: provider call failed", "error", err, "tenant_id", tenantID)
			continue
		}

		if err := j.store.MarkUsagePushSent(ctx, tenantID, day); err != nil {
			j.logger.Error("usage push job: mark sent error", "error", err, "tenant_id", tenantID)
			continue
		}
		pushed++
	}

	j.logger.Info("usage push job: day complete", "day", day.Format("2006-01-02"), "pushed", pushed, "skipped", skipped)
	return nil
}

package billing

import (
	"context"
	"time"

	"github.com/aurorabook/concierge/pkg/logging"
)

// SuspensionJob runs daily (invoked by cmd/billing-worker) to suspend
// tenants whose billing status has been past_due/unpaid past the grace
// period (spec.md §4.11). past_due suspension is always hard.
type SuspensionJob struct {
	store  Store
	grace  time.Duration
	logger *logging.Logger
}

func NewSuspensionJob(store Store, grace time.Duration, logger *logging.Logger) *SuspensionJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &SuspensionJob{store: store, grace: grace, logger: logger}
}

// Run suspends every tenant due for suspension as of now. Continues past
// a single tenant's failure so one bad row doesn't block the rest.
func (j *SuspensionJob) Run(ctx context.Context, now time.Time) error {
	ids, err := j.store.DueForSuspension(ctx, now, j.grace)
	if err != nil {
		return err
	}

	j.logger.Info("suspension job: starting", "due_count", len(ids))
	for _, tenantID := range ids {
		if err := j.store.Suspend(ctx, tenantID, true); err != nil {
			j.logger.Error("suspension job: suspend failed", "error", err, "tenant_id", tenantID)
			continue
		}
		j.logger.Info("suspension job: tenant suspended", "tenant_id", tenantID)
	}
	return nil
}

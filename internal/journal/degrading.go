package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aurorabook/concierge/internal/transient"
	"github.com/aurorabook/concierge/pkg/logging"
)

// Degrading wraps a Journal so that, per spec.md §4.3's failure policy,
// append/checkpoint operations retry once on a transient error and then
// degrade to a no-op rather than block the in-memory session: "at-least-once
// delivery to storage, at-most-once progression of the FSM per turn".
type Degrading struct {
	inner      Journal
	retryWait  time.Duration
	logger     *logging.Logger
	localSeq   map[string]int64
}

func NewDegrading(inner Journal, retryWait time.Duration, logger *logging.Logger) *Degrading {
	if logger == nil {
		logger = logging.Default()
	}
	return &Degrading{inner: inner, retryWait: retryWait, logger: logger, localSeq: make(map[string]int64)}
}

func (d *Degrading) NextSeq(ctx context.Context, tenantID int64, callID string) (int64, error) {
	seq, err := d.inner.NextSeq(ctx, tenantID, callID)
	if err == nil {
		return seq, nil
	}
	if !transient.Is(err) {
		return 0, err
	}
	time.Sleep(d.retryWait)
	seq, err = d.inner.NextSeq(ctx, tenantID, callID)
	if err == nil {
		return seq, nil
	}
	d.logger.Warn("journal: degrading to in-memory seq after transient failure",
		"tenant_id", tenantID, "call_id", callID, "error", err)
	return d.fallbackSeq(tenantID, callID), nil
}

func (d *Degrading) fallbackSeq(tenantID int64, callID string) int64 {
	key := cacheKeyOf(tenantID, callID)
	d.localSeq[key]++
	return d.localSeq[key]
}

func cacheKeyOf(tenantID int64, callID string) string {
	return fmt.Sprintf("%d#%s", tenantID, callID)
}

func (d *Degrading) AppendMessage(ctx context.Context, tenantID int64, callID string, role Role, text string) (int64, error) {
	seq, err := d.inner.AppendMessage(ctx, tenantID, callID, role, text)
	if err == nil {
		return seq, nil
	}
	if !transient.Is(err) {
		return 0, err
	}
	time.Sleep(d.retryWait)
	seq, err = d.inner.AppendMessage(ctx, tenantID, callID, role, text)
	if err == nil {
		return seq, nil
	}
	d.logger.Warn("journal: degrading append to no-op after transient failure",
		"tenant_id", tenantID, "call_id", callID, "error", err)
	return d.fallbackSeq(tenantID, callID), nil
}

func (d *Degrading) WriteCheckpoint(ctx context.Context, tenantID int64, callID string, seq int64, state json.RawMessage) error {
	err := d.inner.WriteCheckpoint(ctx, tenantID, callID, seq, state)
	if err == nil {
		return nil
	}
	if !transient.Is(err) {
		return err
	}
	time.Sleep(d.retryWait)
	err = d.inner.WriteCheckpoint(ctx, tenantID, callID, seq, state)
	if err == nil {
		return nil
	}
	d.logger.Warn("journal: degrading checkpoint to no-op after transient failure",
		"tenant_id", tenantID, "call_id", callID, "error", err)
	return nil
}

func (d *Degrading) LoadLatestCheckpoint(ctx context.Context, tenantID int64, callID string) (int64, json.RawMessage, bool, error) {
	return d.inner.LoadLatestCheckpoint(ctx, tenantID, callID)
}

// EndCall retries once on a transient error and then degrades to a no-op,
// the same policy every other write on this type follows: a missed
// duration_seconds write costs a day of metered-usage accuracy (C11), not
// FSM correctness.
func (d *Degrading) EndCall(ctx context.Context, tenantID int64, callID string) error {
	err := d.inner.EndCall(ctx, tenantID, callID)
	if err == nil {
		return nil
	}
	if !transient.Is(err) {
		return err
	}
	time.Sleep(d.retryWait)
	err = d.inner.EndCall(ctx, tenantID, callID)
	if err == nil {
		return nil
	}
	d.logger.Warn("journal: degrading end-call to no-op after transient failure",
		"tenant_id", tenantID, "call_id", callID, "error", err)
	return nil
}

var _ Journal = (*Degrading)(nil)

package billing

import (
	"context"
	"testing"
	"time"
)

type stubReporter struct {
	calls []int
	err   error
}

func (s *stubReporter) SetUsage(_ context.Context, _ string, minutes int, _ time.Time) error {
	s.calls = append(s.calls, minutes)
	return s.err
}

type stubStore struct {
	Store
	minutes       map[int64]int
	meteredItem   string
	acquireResult bool
	sent          []int64
	failed        []int64
}

func (s *stubStore) DailyMinutes(_ context.Context, _ time.Time) (map[int64]int, error) {
	return s.minutes, nil
}
func (s *stubStore) MeteredItemID(_ context.Context, _ int64) (string, error) {
	return s.meteredItem, nil
}
func (s *stubStore) AcquireUsagePush(_ context.Context, _ int64, _ time.Time, _ int) (bool, error) {
	return s.acquireResult, nil
}
func (s *stubStore) MarkUsagePushSent(_ context.Context, tenantID int64, _ time.Time) error {
	s.sent = append(s.sent, tenantID)
	return nil
}
func (s *stubStore) MarkUsagePushFailed(_ context.Context, tenantID int64, _ time.Time, _ string) error {
	s.failed = append(s.failed, tenantID)
	return nil
}

func TestUsagePushJobPushesAcquiredTenants(t *testing.T) {
	store := &stubStore{
		minutes:       map[int64]int{7: 42},
		meteredItem:   "si_123",
		acquireResult: true,
	}
	reporter := &stubReporter{}
	job := NewUsagePushJob(store, reporter, nil)

	if err := job.Run(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Called once for yesterday and once for the retried day-before.
	if len(reporter.calls) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(reporter.calls))
	}
	if len(store.sent) != 2 {
		t.Fatalf("expected 2 marked sent, got %d", len(store.sent))
	}
}

func TestUsagePushJobMarksFailedOnProviderError(t *testing.T) {
	store := &stubStore{
		minutes:       map[int64]int{7: 42},
		meteredItem:   "si_123",
		acquireResult: true,
	}
	reporter := &stubReporter{err: errProvider}
	job := NewUsagePushJob(store, reporter, nil)

	if err := job.Run(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.failed) != 2 {
		t.Fatalf("expected 2 marked failed, got %d", len(store.failed))
	}
	if len(store.sent) != 0 {
		t.Fatal("expected nothing marked sent")
	}
}

func TestUsagePushJobSkipsWhenNotAcquired(t *testing.T) {
	store := &stubStore{
		minutes:       map[int64]int{7: 42},
		meteredItem:   "si_123",
		acquireResult: false,
	}
	reporter := &stubReporter{}
	job := NewUsagePushJob(store, reporter, nil)

	if err := job.Run(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reporter.calls) != 0 {
		t.Fatal("expected no provider calls when the push was not acquired")
	}
}

var errProvider = fakeErr("provider unavailable")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

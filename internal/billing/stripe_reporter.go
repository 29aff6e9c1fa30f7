package billing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aurorabook/concierge/internal/transient"
)

// StripeUsageReporter pushes a metered-usage quantity via Stripe's usage
// record API, grounded on the teacher's internal/payments/billing.go
// createCheckoutSession (raw net/http form-encoded POST with basic-auth
// secret key, no SDK).
type StripeUsageReporter struct {
	secretKey  string
	httpClient *http.Client
}

func NewStripeUsageReporter(secretKey string) *StripeUsageReporter {
	return &StripeUsageReporter{secretKey: secretKey, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

var _ UsageReporter = (*StripeUsageReporter)(nil)

// SetUsage calls Stripe's subscription-item usage record endpoint with
// action=set, so a retried push for the same day overwrites rather than
// double-counts.
func (s *StripeUsageReporter) SetUsage(ctx context.Context, meteredItemID string, minutes int, endOfDay time.Time) error {
	if s.secretKey == "" {
		return fmt.Errorf("billing: stripe secret key not configured")
	}

	form := url.Values{}
	form.Set("quantity", strconv.Itoa(minutes))
	form.Set("timestamp", strconv.FormatInt(endOfDay.Unix(), 10))
	form.Set("action", "set")

	endpoint := fmt.Sprintf("https://api.stripe.com/v1/subscription_items/%s/usage_records", meteredItemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("billing: build usage record request: %w", err)
	}
	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil && transient.Is(err) {
		retry := req.Clone(ctx)
		retry.Body = io.NopCloser(strings.NewReader(form.Encode()))
		resp, err = s.httpClient.Do(retry)
	}
	if err != nil {
		return fmt.Errorf("billing: stripe usage record request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("billing: stripe usage record returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

package booking

import "github.com/aurorabook/concierge/internal/tenancy"

// Selector resolves the Adapter from TenantConfig only — never a globally
// configured default — preventing cross-tenant leakage (spec.md §4.9
// invariant).
type Selector struct {
	googleBaseURL string
	googleAPIKey  string
	internal      *InternalSlotAdapter
}

func NewSelector(googleBaseURL, googleAPIKey string, internal *InternalSlotAdapter) *Selector {
	return &Selector{googleBaseURL: googleBaseURL, googleAPIKey: googleAPIKey, internal: internal}
}

// For returns the adapter for a tenant's configured provider. Tenants with
// CalendarProviderGoogle but no calendar_id configured fall back to
// NoneAdapter, since the calendar_id is the provider's own addressing, not
// a provider choice — claiming Google support without an id would be
// cross-tenant leakage of a different tenant's calendar.
func (s *Selector) For(cfg tenancy.Config) Adapter {
	switch cfg.CalendarProvider {
	case tenancy.CalendarProviderGoogle:
		if cfg.CalendarID == "" {
			return NoneAdapter{}
		}
		return NewGoogleAdapter(s.googleBaseURL, cfg.CalendarID, s.googleAPIKey, 0)
	case tenancy.CalendarProviderInternal:
		if s.internal != nil {
			return s.internal
		}
		return NoneAdapter{}
	default:
		return NoneAdapter{}
	}
}

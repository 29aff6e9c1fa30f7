// Package tenancy resolves inbound channel identifiers to a tenant and
// carries the resolved tenant id through request-scoped context.
package tenancy

// Status is the lifecycle status of a tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// CalendarProvider selects which booking adapter (internal/booking) a
// tenant's sessions are routed through.
type CalendarProvider string

const (
	CalendarProviderGoogle   CalendarProvider = "google"
	CalendarProviderNone     CalendarProvider = "none"
	CalendarProviderInternal CalendarProvider = "internal"
)

// ConsentMode controls how the FSM records caller consent before booking.
type ConsentMode string

const (
	ConsentModeImplicit ConsentMode = "implicit"
	ConsentModeExplicit ConsentMode = "explicit"
)

// Channel identifies the inbound surface a turn arrived on.
type Channel string

const (
	ChannelVoice    Channel = "voice"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWeb      Channel = "web"
)

// Config is the per-tenant configuration blob (spec.md §3 "Configuration blob").
type Config struct {
	CalendarProvider CalendarProvider
	CalendarID       string
	BusinessName     string
	TransferPhone    string
	ConsentMode      ConsentMode
}

// Tenant is a customer of the service. All rows and caches are scoped by
// TenantID; tenants are created by an admin and never deleted.
type Tenant struct {
	TenantID    int64
	DisplayName string
	Timezone    string
	Status      Status
	Config      Config
}

// IsSuspended reports whether the tenant's status blocks further FSM
// progress on a turn (see internal/billing suspension lifecycle).
func (t Tenant) IsSuspended() bool {
	return t.Status == StatusSuspended
}

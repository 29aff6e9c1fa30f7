package tenancy

import "errors"

// ErrUnknownRoute is returned when no tenant is routed to the given
// (channel, normalized number) pair.
var ErrUnknownRoute = errors.New("tenancy: unknown route")

// ErrUnauthenticated is returned when an API key does not resolve to a
// tenant.
var ErrUnauthenticated = errors.New("tenancy: unauthenticated")

// ErrInvalidNumber is returned by NormalizeE164 when the input cannot be
// normalized into a valid E.164 number.
var ErrInvalidNumber = errors.New("tenancy: invalid phone number")

// Package migrations embeds the SQL schema for the concierge service,
// applied by cmd/migrate via golang-migrate's iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

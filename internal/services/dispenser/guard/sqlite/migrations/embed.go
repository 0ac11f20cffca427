// Package migrations contains embedded SQL migrations for the admission ledger.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

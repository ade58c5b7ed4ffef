// Package migrations embeds the scoring service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

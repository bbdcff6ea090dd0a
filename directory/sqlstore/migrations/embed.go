// Package migrations embeds the goose migrations for each supported SQL
// dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Package migrations embeds the SQL migration files so the server
// binary can apply them without shipping a separate directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

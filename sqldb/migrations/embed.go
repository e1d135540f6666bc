// Package migrations holds the schema for both supported dialects.
package migrations

import "embed"

// FS contains one directory of migrations per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

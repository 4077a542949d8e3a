// Package schema provides embedded JSON schemas for conform suite files and
// engine options.
package schema

import "embed"

// FS contains the embedded schema files.
//
//go:embed *.schema.json
var FS embed.FS

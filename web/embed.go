package webassets

import "embed"

// FS contains the embedded dashboard pages and client scripts.
//
//go:embed pages static
var FS embed.FS

// Package stockgate provides the embedded inventory pages served behind the access gate.
package stockgate

import "embed"

// PagesFS holds the built-in page shells. In dev mode, or when PAGES_DIR is set,
// pages are read from disk instead.
//
//go:embed all:web/pages
var PagesFS embed.FS

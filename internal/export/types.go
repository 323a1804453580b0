// Package export renders an idea's public page to PDF.
package export

import "errors"

// Page is the public-facing content rendered into the export.
type Page struct {
	Title     string
	PublicMD  string
	OwnerName string
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are
// unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

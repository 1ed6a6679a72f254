// Package export renders journal articles and storyteller profiles as
// printable press sheets, as HTML or as PDF via headless Chrome.
package export

import (
	"errors"
	"html/template"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Sheet is a single press sheet ready for rendering.
type Sheet struct {
	Kind     string // "Journal" or "Storyteller"
	Slug     string
	Title    string
	Subtitle string
	Byline   string
	Date     *time.Time
	ImageURL string
	Body     template.HTML
	Tags     []string
	Facts    []Fact
	URL      string
}

// Fact is a labelled line in the sheet's sidebar.
type Fact struct {
	Label string
	Value string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates a format other than PDF or HTML.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)

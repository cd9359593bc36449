package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lockaudit/lockaudit/internal/models"
)

// Format of a rendered report
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatSARIF    Format = "sarif"
	FormatMarkdown Format = "markdown"
)

// ParseFormat from a flag or query value
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "sarif":
		return FormatSARIF, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid format: %q (use text, json, csv, sarif, or markdown)", s)
	}
}

// ContentType for HTTP responses
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatSARIF:
		return "application/sarif+json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension without the dot
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// DefaultFilename is applocker_inspection_<timestamp>.<ext>
func DefaultFilename(f Format, now time.Time) string {
	return fmt.Sprintf("applocker_inspection_%s.%s", now.Format("20060102_150405"), f.Extension())
}

// Document is what the writers render
type Document struct {
	Source   string
	SHA256   string
	Encoding string
	Findings []models.Finding
}

// Options for Write
type Options struct {
	// Color enables ANSI colour in text output
	Color bool
}

// Write renders doc in the given format
func Write(w io.Writer, f Format, doc Document, opts Options) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, doc.Findings)
	case FormatCSV:
		return WriteCSV(w, doc.Findings)
	case FormatSARIF:
		return WriteSARIF(w, doc)
	case FormatMarkdown:
		return WriteMarkdown(w, doc)
	case FormatText:
		return WriteText(w, doc, opts.Color)
	default:
		return fmt.Errorf("unsupported format: %q", f)
	}
}

package report

import (
	"encoding/json"
	"io"

	"github.com/lockaudit/lockaudit/internal/models"
)

// WriteJSON writes an array of records with 2-space indentation
func WriteJSON(w io.Writer, findings []models.Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(models.Records(findings))
}

// Envelope is the service response body
type Envelope struct {
	Source   string          `json:"source,omitempty"`
	SHA256   string          `json:"sha256,omitempty"`
	Encoding string          `json:"encoding"`
	Summary  Summary         `json:"summary"`
	Findings []models.Record `json:"findings"`
}

// NewEnvelope summarizes doc's findings
func NewEnvelope(doc Document) Envelope {
	return Envelope{
		Source:   doc.Source,
		SHA256:   doc.SHA256,
		Encoding: doc.Encoding,
		Summary:  Summarize(doc.Findings),
		Findings: models.Records(doc.Findings),
	}
}

// WriteEnvelope writes the service response form
func WriteEnvelope(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(NewEnvelope(doc))
}

package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/lockaudit/lockaudit/internal/models"
)

// WriteCSV writes a header of the record field names then one row per finding
func WriteCSV(w io.Writer, findings []models.Finding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.RecordFields); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range models.Records(findings) {
		if err := cw.Write(rec.Values()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

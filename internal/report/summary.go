// Package report aggregates findings and renders them for people and tools.
package report

import (
	"fmt"
	"strings"

	"github.com/lockaudit/lockaudit/internal/models"
)

// SeverityCount row of the summary
type SeverityCount struct {
	Severity models.Severity `json:"severity"`
	Count    int             `json:"count"`
}

// CollectionCount row of the summary
type CollectionCount struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// Summary metrics. BySeverity is always High, Medium, Low, Info;
// ByCollection is in first-seen order.
type Summary struct {
	Total        int               `json:"total"`
	BySeverity   []SeverityCount   `json:"by_severity"`
	ByCollection []CollectionCount `json:"by_collection"`
}

// Summarize counts findings by severity and collection
func Summarize(findings []models.Finding) Summary {
	s := Summary{
		Total:        len(findings),
		BySeverity:   make([]SeverityCount, 0, 4),
		ByCollection: []CollectionCount{},
	}
	bySev := map[models.Severity]int{}
	index := map[string]int{}
	for _, f := range findings {
		bySev[f.Severity]++
		i, ok := index[f.Collection]
		if !ok {
			i = len(s.ByCollection)
			index[f.Collection] = i
			s.ByCollection = append(s.ByCollection, CollectionCount{Collection: f.Collection})
		}
		s.ByCollection[i].Count++
	}
	for _, sev := range models.AllSeverities() {
		s.BySeverity = append(s.BySeverity, SeverityCount{Severity: sev, Count: bySev[sev]})
	}
	return s
}

// Count for one severity
func (s Summary) Count(sev models.Severity) int {
	for _, c := range s.BySeverity {
		if c.Severity == sev {
			return c.Count
		}
	}
	return 0
}

// CollectionMap for CEL input
func (s Summary) CollectionMap() map[string]int {
	out := make(map[string]int, len(s.ByCollection))
	for _, c := range s.ByCollection {
		out[c.Collection] = c.Count
	}
	return out
}

// Criteria for Filter; an empty set places no constraint on its axis
type Criteria struct {
	Severities  []models.Severity
	Collections []string
}

// Empty reports whether c matches everything
func (c Criteria) Empty() bool {
	return len(c.Severities) == 0 && len(c.Collections) == 0
}

// Filter keeps findings matching both axes, preserving order
func Filter(findings []models.Finding, c Criteria) []models.Finding {
	sevs := map[models.Severity]bool{}
	for _, s := range c.Severities {
		sevs[s] = true
	}
	cols := map[string]bool{}
	for _, col := range c.Collections {
		cols[col] = true
	}

	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		if len(sevs) > 0 && !sevs[f.Severity] {
			continue
		}
		if len(cols) > 0 && !cols[f.Collection] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// HighPriority findings for the recommendations view
func HighPriority(findings []models.Finding) []models.Finding {
	return Filter(findings, Criteria{Severities: []models.Severity{models.SeverityHigh}})
}

// ParseSeverities reads a comma-separated list ("High,Medium")
func ParseSeverities(values ...string) ([]models.Severity, error) {
	var out []models.Severity
	seen := map[models.Severity]bool{}
	for _, v := range splitList(values) {
		sev, err := models.ParseSeverity(v)
		if err != nil {
			return nil, err
		}
		if !seen[sev] {
			seen[sev] = true
			out = append(out, sev)
		}
	}
	return out, nil
}

// ParseCollections reads a comma-separated list; matching is exact
func ParseCollections(values ...string) []string {
	return splitList(values)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// MaxSeverity of findings; ok is false when there are none
func MaxSeverity(findings []models.Finding) (models.Severity, bool) {
	if len(findings) == 0 {
		return models.SeverityInfo, false
	}
	max := models.SeverityInfo
	for _, f := range findings {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max, true
}

// AtOrAbove counts findings with severity >= threshold
func AtOrAbove(findings []models.Finding, threshold models.Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity >= threshold {
			n++
		}
	}
	return n
}

// String is the one-line form used in logs and receipts
func (s Summary) String() string {
	parts := make([]string, 0, len(s.BySeverity))
	for _, c := range s.BySeverity {
		parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(c.Severity.String()), c.Count))
	}
	return fmt.Sprintf("total=%d %s", s.Total, strings.Join(parts, " "))
}

// Package differ compares a saved baseline with a fresh inspection.
package differ

import (
	"encoding/json"
	"fmt"

	"github.com/wI2L/jsondiff"

	"github.com/lockaudit/lockaudit/internal/baseline"
	"github.com/lockaudit/lockaudit/internal/models"
)

// DriftType enum
type DriftType string

const (
	DriftFindingAdded   DriftType = "FINDING_ADDED"
	DriftFindingRemoved DriftType = "FINDING_REMOVED"
	DriftFindingChanged DriftType = "FINDING_CHANGED"
)

// DriftItem details. Severity is the finding's severity for additions,
// the new severity for escalations and Info otherwise.
type DriftItem struct {
	Type        DriftType
	Severity    models.Severity
	Fingerprint string
	Identifier  string
	OldSeverity string
	NewSeverity string
	Escalated   bool
	Patch       jsondiff.Patch
	Changes     []string
	Message     string
}

// Result of Compare
type Result struct {
	HasDrift bool
	Items    []DriftItem
}

// Compare baseline entries against current findings. Items follow the
// current finding order, then removed baseline entries in baseline order.
func Compare(b *models.Baseline, findings []models.Finding) (*Result, error) {
	fps, err := baseline.Fingerprints(findings)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint findings: %w", err)
	}

	accepted := make(map[string]models.Record, len(b.Findings))
	for _, e := range b.Findings {
		accepted[e.Fingerprint] = e.Finding
	}

	result := &Result{Items: []DriftItem{}}
	matched := make(map[string]bool, len(findings))

	for i, f := range findings {
		fp := fps[i]
		current := f.Record()
		old, found := accepted[fp]
		if !found {
			result.Items = append(result.Items, DriftItem{
				Type:        DriftFindingAdded,
				Severity:    f.Severity,
				Fingerprint: fp,
				Identifier:  identifier(current),
				NewSeverity: current.Severity,
				Message:     fmt.Sprintf("New %s finding: %s", current.Severity, identifier(current)),
			})
			continue
		}
		matched[fp] = true

		item, changed, err := compareRecords(old, current)
		if err != nil {
			return nil, fmt.Errorf("failed to compare finding %s: %w", identifier(current), err)
		}
		if changed {
			item.Fingerprint = fp
			result.Items = append(result.Items, item)
		}
	}

	for _, e := range b.Findings {
		if matched[e.Fingerprint] {
			continue
		}
		result.Items = append(result.Items, DriftItem{
			Type:        DriftFindingRemoved,
			Severity:    models.SeverityInfo,
			Fingerprint: e.Fingerprint,
			Identifier:  identifier(e.Finding),
			OldSeverity: e.Finding.Severity,
			Message:     fmt.Sprintf("Finding resolved: %s", identifier(e.Finding)),
		})
	}

	result.HasDrift = len(result.Items) > 0
	return result, nil
}

// compareRecords diffs two records of the same identity
func compareRecords(old, current models.Record) (DriftItem, bool, error) {
	patch, err := ComputeDiff(old, current)
	if err != nil {
		return DriftItem{}, false, err
	}
	if len(patch) == 0 {
		return DriftItem{}, false, nil
	}

	item := DriftItem{
		Type:        DriftFindingChanged,
		Severity:    models.SeverityInfo,
		Identifier:  identifier(current),
		OldSeverity: old.Severity,
		NewSeverity: current.Severity,
		Patch:       patch,
		Changes:     Translate(patch, old, current),
	}

	oldSev, errOld := models.ParseSeverity(old.Severity)
	newSev, errNew := models.ParseSeverity(current.Severity)
	if errOld == nil && errNew == nil && newSev > oldSev {
		item.Escalated = true
		item.Severity = newSev
	}

	item.Message = fmt.Sprintf("Finding changed: %s", identifier(current))
	return item, true, nil
}

// ComputeDiff returns the JSON patch from old to current
func ComputeDiff(old, current models.Record) (jsondiff.Patch, error) {
	oldJSON, err := json.Marshal(old)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal baseline finding: %w", err)
	}
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal current finding: %w", err)
	}
	patch, err := jsondiff.CompareJSON(oldJSON, currentJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}
	return patch, nil
}

func identifier(r models.Record) string {
	if r.RuleType == models.RuleTypeCollection {
		return fmt.Sprintf("%s rule collection", r.Collection)
	}
	return fmt.Sprintf("%s %s '%s' (%s: %s)", r.Collection, r.RuleType, r.RuleName, r.ConditionType, r.Condition)
}

// Counts by drift type
func (r *Result) Counts() (added, removed, changed, escalated int) {
	for _, it := range r.Items {
		switch it.Type {
		case DriftFindingAdded:
			added++
		case DriftFindingRemoved:
			removed++
		case DriftFindingChanged:
			changed++
			if it.Escalated {
				escalated++
			}
		}
	}
	return
}

// Failing returns added findings and escalations at or above threshold
func (r *Result) Failing(threshold models.Severity) []DriftItem {
	var out []DriftItem
	for _, it := range r.Items {
		switch {
		case it.Type == DriftFindingAdded && it.Severity >= threshold:
			out = append(out, it)
		case it.Type == DriftFindingChanged && it.Escalated && it.Severity >= threshold:
			out = append(out, it)
		}
	}
	return out
}

// Summary is the one-line form used in receipts
func (r *Result) Summary() string {
	a, rm, c, e := r.Counts()
	return fmt.Sprintf("added=%d removed=%d changed=%d escalated=%d", a, rm, c, e)
}

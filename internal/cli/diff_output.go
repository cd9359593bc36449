package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lockaudit/lockaudit/internal/differ"
	"github.com/lockaudit/lockaudit/internal/gate"
	"github.com/lockaudit/lockaudit/internal/models"
)

// DiffResult output structure
type DiffResult struct {
	BaselinePath string            `json:"baseline"`
	Source       string            `json:"source"`
	Summary      DiffSummary       `json:"summary"`
	Drift        []DriftOutputItem `json:"drift"`
	Gate         *GateDecision     `json:"gate,omitempty"`
	FailOn       string            `json:"failOn"`
	Outcome      string            `json:"outcome"` // "PASS" or "FAIL"
}

// DiffSummary by drift severity and type
type DiffSummary struct {
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
	Info      int `json:"info"`
	Total     int `json:"total"`
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Changed   int `json:"changed"`
	Escalated int `json:"escalated"`
}

// DriftOutputItem detail
type DriftOutputItem struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Identifier  string   `json:"identifier"`
	Fingerprint string   `json:"fingerprint"`
	OldSeverity string   `json:"oldSeverity,omitempty"`
	NewSeverity string   `json:"newSeverity,omitempty"`
	Changes     []string `json:"changes,omitempty"`
	Message     string   `json:"message"`
}

// GateDecision result
type GateDecision struct {
	Preset  string   `json:"preset"`
	Status  string   `json:"status"`
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons,omitempty"`
}

// severityKey is the lowercase group name used in output
func severityKey(s models.Severity) string {
	return strings.ToLower(s.String())
}

// BuildDiffResult from components; outcome is nil when no gate ran
func BuildDiffResult(
	baselinePath string,
	source string,
	drift *differ.Result,
	outcome *gate.Outcome,
	gatePreset string,
	failOn gate.FailOn,
) *DiffResult {
	result := &DiffResult{
		BaselinePath: baselinePath,
		Source:       source,
		Drift:        []DriftOutputItem{},
		FailOn:       failOn.String(),
		Outcome:      "PASS",
	}

	if drift != nil {
		for _, d := range drift.Items {
			result.Drift = append(result.Drift, DriftOutputItem{
				Type:        string(d.Type),
				Severity:    severityKey(d.Severity),
				Identifier:  d.Identifier,
				Fingerprint: d.Fingerprint,
				OldSeverity: d.OldSeverity,
				NewSeverity: d.NewSeverity,
				Changes:     d.Changes,
				Message:     d.Message,
			})
		}
	}

	result.Summary = calculateSummary(drift)

	if outcome != nil {
		result.Gate = &GateDecision{
			Preset:  gatePreset,
			Status:  string(outcome.Status),
			Passed:  outcome.Passed(),
			Reasons: outcome.Reasons,
		}
	}

	if result.Gate != nil && !result.Gate.Passed {
		result.Outcome = "FAIL"
	} else if shouldFailOnDrift(drift, failOn) {
		result.Outcome = "FAIL"
	}

	return result
}

// calculateSummary counts
func calculateSummary(drift *differ.Result) DiffSummary {
	summary := DiffSummary{}
	if drift == nil {
		return summary
	}

	for _, d := range drift.Items {
		switch d.Severity {
		case models.SeverityHigh:
			summary.High++
		case models.SeverityMedium:
			summary.Medium++
		case models.SeverityLow:
			summary.Low++
		default:
			summary.Info++
		}
		summary.Total++
	}
	summary.Added, summary.Removed, summary.Changed, summary.Escalated = drift.Counts()

	return summary
}

// shouldFailOnDrift checks threshold
func shouldFailOnDrift(drift *differ.Result, failOn gate.FailOn) bool {
	if drift == nil || !drift.HasDrift || !failOn.Set {
		return false
	}
	return len(drift.Failing(failOn.Threshold)) > 0
}

// FormatTextOutput human readable
func FormatTextOutput(result *DiffResult) string {
	var sb strings.Builder

	gateName := "none"
	if result.Gate != nil {
		gateName = result.Gate.Preset
	}

	if result.Outcome == "PASS" {
		sb.WriteString(fmt.Sprintf("%sLockaudit diff: PASS%s (gate=%s, fail-on=%s)\n",
			colorGreen, colorReset, gateName, result.FailOn))
	} else {
		sb.WriteString(fmt.Sprintf("%sLockaudit diff: FAIL%s (gate=%s, fail-on=%s)\n",
			colorRed, colorReset, gateName, result.FailOn))
	}

	sb.WriteString(fmt.Sprintf("Policy: %s\n", result.Source))
	sb.WriteString(fmt.Sprintf("Baseline: %s\n", result.BaselinePath))
	s := result.Summary
	sb.WriteString(fmt.Sprintf("Added: %d  Removed: %d  Changed: %d  Escalated: %d\n", s.Added, s.Removed, s.Changed, s.Escalated))
	sb.WriteString("\n")

	if s.Total > 0 {
		groups := groupDriftBySeverity(result.Drift)
		for _, sev := range models.AllSeverities() {
			key := severityKey(sev)
			items := groups[key]
			if len(items) == 0 {
				continue
			}
			color := driftColor(sev)
			sb.WriteString(fmt.Sprintf("%s%s (%d)%s\n", color, strings.ToUpper(key), len(items), colorReset))
			for _, d := range items {
				formatDriftItem(&sb, d, color)
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(fmt.Sprintf("%s✓ No drift detected%s\n\n", colorGreen, colorReset))
	}

	if result.Gate != nil {
		if result.Gate.Passed {
			sb.WriteString(fmt.Sprintf("Gate: %s%s%s\n", colorGreen, strings.ToUpper(result.Gate.Status), colorReset))
		} else {
			sb.WriteString(fmt.Sprintf("Gate: %sDENY%s\n", colorRed, colorReset))
		}
		for _, reason := range result.Gate.Reasons {
			sb.WriteString(fmt.Sprintf("- %s\n", reason))
		}
	}

	return sb.String()
}

func driftColor(s models.Severity) string {
	switch s {
	case models.SeverityHigh:
		return colorRed
	case models.SeverityMedium:
		return colorYellow
	default:
		return ""
	}
}

// groupDriftBySeverity helper
func groupDriftBySeverity(drifts []DriftOutputItem) map[string][]DriftOutputItem {
	groups := map[string][]DriftOutputItem{}
	for _, d := range drifts {
		groups[d.Severity] = append(groups[d.Severity], d)
	}

	// Sort each group by identifier for deterministic output
	for k := range groups {
		sort.SliceStable(groups[k], func(i, j int) bool {
			return groups[k][i].Identifier < groups[k][j].Identifier
		})
	}

	return groups
}

func formatDriftItem(sb *strings.Builder, d DriftOutputItem, color string) {
	if color != "" {
		sb.WriteString(fmt.Sprintf("%s- %s: %s%s\n", color, d.Type, d.Identifier, colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", d.Type, d.Identifier))
	}

	for _, c := range d.Changes {
		sb.WriteString(fmt.Sprintf("    %s\n", c))
	}
	if len(d.Changes) == 0 && d.Type != string(differ.DriftFindingAdded) && d.Fingerprint != "" {
		sb.WriteString(fmt.Sprintf("    %s\n", truncHashOutput(d.Fingerprint)))
	}
}

// truncHashOutput shortener
func truncHashOutput(h string) string {
	if len(h) <= 23 {
		return h
	}
	return h[:23] + "..."
}

// FormatJSONOutput raw json
func FormatJSONOutput(result *DiffResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

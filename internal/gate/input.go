package gate

import (
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/report"
)

// Input is the CEL context exposed as `input`
type Input struct {
	Summary  report.Summary
	Findings []models.Finding
	Encoding string
	Document *models.PolicyDocument
}

// BuildInput from an inspection; doc may be nil
func BuildInput(doc *models.PolicyDocument, encoding string, findings []models.Finding) Input {
	return Input{
		Summary:  report.Summarize(findings),
		Findings: findings,
		Encoding: encoding,
		Document: doc,
	}
}

// ToMap for CEL. Counts are int64 and lists are []any so every value
// crosses into CEL without reflection.
func (in Input) ToMap() map[string]any {
	byCollection := map[string]any{}
	for _, c := range in.Summary.ByCollection {
		byCollection[c.Collection] = int64(c.Count)
	}

	summary := map[string]any{
		"high":          int64(in.Summary.Count(models.SeverityHigh)),
		"medium":        int64(in.Summary.Count(models.SeverityMedium)),
		"low":           int64(in.Summary.Count(models.SeverityLow)),
		"info":          int64(in.Summary.Count(models.SeverityInfo)),
		"total":         int64(in.Summary.Total),
		"by_collection": byCollection,
	}

	findings := make([]any, 0, len(in.Findings))
	for _, f := range in.Findings {
		findings = append(findings, findingToMap(f))
	}

	return map[string]any{
		"summary":  summary,
		"findings": findings,
		"document": documentToMap(in.Document, in.Encoding),
	}
}

// findingToMap
func findingToMap(f models.Finding) map[string]any {
	checks := make([]any, len(f.Checks))
	for i, c := range f.Checks {
		checks[i] = string(c)
	}
	return map[string]any{
		"severity":       f.Severity.String(),
		"collection":     f.Collection,
		"rule_type":      f.RuleType,
		"action":         f.Action,
		"principal":      f.Principal,
		"rule_name":      f.RuleName,
		"condition_type": f.ConditionType,
		"condition":      f.Condition,
		"reason":         f.Reason(),
		"recommendation": f.Recommendation(),
		"check":          string(f.Check),
		"checks":         checks,
	}
}

// documentToMap
func documentToMap(doc *models.PolicyDocument, encoding string) map[string]any {
	collections := []any{}
	version := ""
	if doc != nil {
		version = doc.Version
		for _, c := range doc.Collections {
			collections = append(collections, map[string]any{
				"type":  c.Type,
				"mode":  string(c.EnforcementMode),
				"rules": int64(len(c.Rules)),
			})
		}
	}
	return map[string]any{
		"encoding":    encoding,
		"version":     version,
		"collections": collections,
	}
}

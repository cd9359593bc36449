package baseline

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/lockaudit/lockaudit/internal/models"
)

// FingerprintPrefix marks the digest algorithm
const FingerprintPrefix = "sha256:"

// identity holds the fields that name a finding. Severity, reasons and
// recommendations are deliberately left out so a re-scored finding keeps
// its fingerprint.
func identity(r models.Record, occurrence int) map[string]any {
	id := map[string]any{
		"collection":     r.Collection,
		"rule_type":      r.RuleType,
		"rule_name":      r.RuleName,
		"principal":      strings.ToLower(strings.TrimSpace(r.Principal)),
		"condition_type": r.ConditionType,
		"condition":      normalizeCondition(r.ConditionType, r.Condition),
	}
	if occurrence > 0 {
		id["occurrence"] = occurrence
	}
	return id
}

// normalizeCondition folds case for paths, which Windows compares
// case-insensitively
func normalizeCondition(condType, cond string) string {
	cond = strings.TrimSpace(cond)
	if condType == models.ConditionTypePath {
		return strings.ToLower(cond)
	}
	return cond
}

// Fingerprint of a single record
func Fingerprint(r models.Record) (string, error) {
	return fingerprint(r, 0)
}

func fingerprint(r models.Record, occurrence int) (string, error) {
	canonical, err := Canonicalize(identity(r, occurrence))
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize finding: %w", err)
	}
	return fmt.Sprintf("%s%x", FingerprintPrefix, sha256.Sum256(canonical)), nil
}

// Fingerprints for a finding list. Findings sharing an identity (duplicate
// rules) are numbered in order so every fingerprint is unique.
func Fingerprints(findings []models.Finding) ([]string, error) {
	out := make([]string, len(findings))
	seen := map[string]int{}
	for i, f := range findings {
		rec := f.Record()
		base, err := fingerprint(rec, 0)
		if err != nil {
			return nil, err
		}
		n := seen[base]
		seen[base]++
		if n == 0 {
			out[i] = base
			continue
		}
		if out[i], err = fingerprint(rec, n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

package models

import (
	"fmt"
	"strings"
)

// Severity is ordered Info < Low < Medium < High
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// AllSeverities highest first
func AllSeverities() []Severity {
	return []Severity{SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	case SeverityInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// ParseSeverity is case-insensitive
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	case "info":
		return SeverityInfo, nil
	default:
		return SeverityInfo, fmt.Errorf("invalid severity: %q (use high, medium, low, or info)", s)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityInfo || s > SeverityHigh {
		return nil, fmt.Errorf("invalid severity value %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Condition types
const (
	ConditionTypeNone      = "n/a"
	ConditionTypePath      = "Path"
	ConditionTypePublisher = "Publisher"
	ConditionTypeHash      = "Hash"
)

// RuleTypeCollection marks collection-level findings
const RuleTypeCollection = "(collection)"

// Finding is one risk observation. Reasons and Recommendations are paired
// index by index.
type Finding struct {
	Severity        Severity
	Collection      string
	RuleType        string
	Action          string
	Principal       string
	RuleName        string
	ConditionType   string
	Condition       string
	Reasons         []string
	Recommendations []string
	// Checks pairs with Reasons; Check is the one that set Severity
	Checks []CheckID
	Check  CheckID
}

// Reason rendered as a sentence
func (f Finding) Reason() string {
	return joinClauses(f.Reasons, false)
}

// Recommendation rendered as a sentence. Repeated adjacent entries are
// written once.
func (f Finding) Recommendation() string {
	return joinClauses(f.Recommendations, true)
}

func joinClauses(items []string, collapse bool) string {
	if len(items) == 0 {
		return ""
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		if collapse && i > 0 && it == items[i-1] {
			continue
		}
		out = append(out, it)
	}
	return strings.Join(out, "; ") + "."
}

// Record flattens a finding for tabular export
func (f Finding) Record() Record {
	return Record{
		Severity:       f.Severity.String(),
		Collection:     f.Collection,
		RuleType:       f.RuleType,
		Action:         f.Action,
		Principal:      f.Principal,
		RuleName:       f.RuleName,
		ConditionType:  f.ConditionType,
		Condition:      f.Condition,
		Reason:         f.Reason(),
		Recommendation: f.Recommendation(),
	}
}

// RecordFields is the export column order
var RecordFields = []string{
	"Severity",
	"Collection",
	"RuleType",
	"Action",
	"Principal",
	"RuleName",
	"ConditionType",
	"Condition",
	"Reason",
	"Recommendation",
}

// Record is the flat export row. Field order matches RecordFields.
type Record struct {
	Severity       string `json:"Severity" yaml:"Severity"`
	Collection     string `json:"Collection" yaml:"Collection"`
	RuleType       string `json:"RuleType" yaml:"RuleType"`
	Action         string `json:"Action" yaml:"Action"`
	Principal      string `json:"Principal" yaml:"Principal"`
	RuleName       string `json:"RuleName" yaml:"RuleName"`
	ConditionType  string `json:"ConditionType" yaml:"ConditionType"`
	Condition      string `json:"Condition" yaml:"Condition"`
	Reason         string `json:"Reason" yaml:"Reason"`
	Recommendation string `json:"Recommendation" yaml:"Recommendation"`
}

// Values in RecordFields order
func (r Record) Values() []string {
	return []string{
		r.Severity,
		r.Collection,
		r.RuleType,
		r.Action,
		r.Principal,
		r.RuleName,
		r.ConditionType,
		r.Condition,
		r.Reason,
		r.Recommendation,
	}
}

// Records converts findings in order
func Records(findings []Finding) []Record {
	out := make([]Record, len(findings))
	for i, f := range findings {
		out[i] = f.Record()
	}
	return out
}

// Package receipt writes one audit record per lockaudit run: what was
// inspected, what was found and whether the gate let it through.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt structure
type Receipt struct {
	SchemaVersion string           `json:"schema_version"`
	OpID          string           `json:"op_id"`
	TsStart       string           `json:"ts_start"`
	TsEnd         string           `json:"ts_end"`
	Command       string           `json:"command"`
	Args          []string         `json:"args"`
	ArgsRedacted  bool             `json:"args_redacted,omitempty"` // true if any args were sanitized
	Result        Result           `json:"result"`
	Source        *SourceRef       `json:"source,omitempty"`
	Findings      *FindingsSummary `json:"findings,omitempty"`
	Drift         *DriftSummary    `json:"drift,omitempty"`
	Gate          *GateSummary     `json:"gate,omitempty"`
	Artifact      *ArtifactRef     `json:"artifact,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// SourceRef identifies the inspected policy document
type SourceRef struct {
	Path     string `json:"path"`
	SHA256   string `json:"sha256,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// FindingsSummary counts by severity
type FindingsSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
	Total  int `json:"total"`
}

// DriftSummary against a saved baseline
type DriftSummary struct {
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Changed   int    `json:"changed"`
	Escalated int    `json:"escalated"`
	Summary   string `json:"summary,omitempty"`
}

// GateSummary detail
type GateSummary struct {
	Preset   string    `json:"preset,omitempty"` // baseline|strict|custom
	Status   string    `json:"status"`           // pass|warn|fail
	RulesHit []RuleHit `json:"rules_hit,omitempty"`
}

// RuleHit detail
type RuleHit struct {
	Name        string   `json:"name"`
	Severity    string   `json:"severity"` // warn|error
	ControlRefs []string `json:"control_refs,omitempty"`
}

// ArtifactRef is a file the run produced (baseline, bundle, report)
type ArtifactRef struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256,omitempty"`
}

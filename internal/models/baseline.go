package models

// BaselineVersion current
const BaselineVersion = "1.0"

// BaselineSource identifies the inspected policy
type BaselineSource struct {
	Path     string `json:"path,omitempty"`
	SHA256   string `json:"sha256"`
	Encoding string `json:"encoding,omitempty"`
}

// BaselineEntry accepted finding
type BaselineEntry struct {
	Fingerprint string `json:"fingerprint"`
	Finding     Record `json:"finding"`
}

// Baseline file structure
type Baseline struct {
	BaselineVersion string          `json:"baseline_version"`
	Generator       string          `json:"generator"`
	CreatedAt       string          `json:"created_at"`
	Source          BaselineSource  `json:"source"`
	Findings        []BaselineEntry `json:"findings"`
}

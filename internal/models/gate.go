package models

// GateMode controls how warn-severity rules affect the outcome
type GateMode string

const (
	GateModeStrict GateMode = "strict"
	GateModeWarn   GateMode = "warn"
)

// GateRuleSeverity of a failed rule
type GateRuleSeverity string

const (
	GateSeverityError GateRuleSeverity = "error"
	GateSeverityWarn  GateRuleSeverity = "warn"
)

// GateConfig from yaml
type GateConfig struct {
	Name  string     `yaml:"name" json:"name"`
	Mode  GateMode   `yaml:"mode,omitempty" json:"mode,omitempty"`
	Rules []GateRule `yaml:"rules" json:"rules"`
}

// GateRule cel rule
type GateRule struct {
	Name        string           `yaml:"name" json:"name"`
	Expr        string           `yaml:"expr" json:"expr"`
	FailureMsg  string           `yaml:"failure_msg" json:"failure_msg"`
	Severity    GateRuleSeverity `yaml:"severity,omitempty" json:"severity,omitempty"`
	ControlRefs []string         `yaml:"control_refs,omitempty" json:"control_refs,omitempty"`
}

// EffectiveSeverity defaults to error
func (r GateRule) EffectiveSeverity() GateRuleSeverity {
	if r.Severity == GateSeverityWarn {
		return GateSeverityWarn
	}
	return GateSeverityError
}

// GateResult eval result
type GateResult struct {
	RuleName    string
	Passed      bool
	Severity    GateRuleSeverity
	FailureMsg  string
	ControlRefs []string
}

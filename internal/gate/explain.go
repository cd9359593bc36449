package gate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lockaudit/lockaudit/internal/models"
)

// Source identifies where a gate config came from
type Source struct {
	Type string `json:"type"` // "preset" or "file"
	Name string `json:"name"`
}

// ExplainOutput is the JSON output schema
type ExplainOutput struct {
	SchemaVersion string        `json:"schema_version"`
	Source        Source        `json:"source"`
	GeneratedAt   string        `json:"generated_at"`
	Mode          string        `json:"mode"`
	Rules         []ExplainRule `json:"rules"`
}

// ExplainRule is a rule with all metadata for JSON output
type ExplainRule struct {
	Name        string   `json:"name"`
	Severity    string   `json:"severity"`
	Expr        string   `json:"expr"`
	FailureMsg  string   `json:"failure_msg"`
	ControlRefs []string `json:"control_refs"`
}

func effectiveMode(config *models.GateConfig) string {
	if config.Mode == "" {
		return string(models.GateModeStrict)
	}
	return string(config.Mode)
}

// ExplainJSON renders the rules as JSON
func ExplainJSON(config *models.GateConfig, source Source, now time.Time) (string, error) {
	output := ExplainOutput{
		SchemaVersion: "1.0",
		Source:        source,
		GeneratedAt:   now.UTC().Format(time.RFC3339Nano),
		Mode:          effectiveMode(config),
		Rules:         make([]ExplainRule, 0, len(config.Rules)),
	}

	for _, rule := range config.Rules {
		// nil slices become empty arrays in JSON
		controlRefs := rule.ControlRefs
		if controlRefs == nil {
			controlRefs = []string{}
		}
		output.Rules = append(output.Rules, ExplainRule{
			Name:        rule.Name,
			Severity:    string(rule.EffectiveSeverity()),
			Expr:        rule.Expr,
			FailureMsg:  rule.FailureMsg,
			ControlRefs: controlRefs,
		})
	}

	b, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(b) + "\n", nil
}

// ExplainMarkdown renders the rules as a Markdown table
func ExplainMarkdown(config *models.GateConfig, source Source) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Gate: %s\n\n", config.Name))
	sb.WriteString(fmt.Sprintf("**Source**: %s (`%s`)\n\n", source.Type, source.Name))
	sb.WriteString(fmt.Sprintf("**Mode**: %s\n\n", effectiveMode(config)))

	sb.WriteString("| Rule | Severity | Control Refs | Expr |\n")
	sb.WriteString("|------|----------|--------------|------|\n")
	for _, rule := range config.Rules {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | `%s` |\n",
			rule.Name, rule.EffectiveSeverity(), formatSliceForMD(rule.ControlRefs), truncateExpr(rule.Expr, 120)))
	}

	sb.WriteString("\n")
	return sb.String()
}

// formatSliceForMD formats a string slice for a Markdown table cell
func formatSliceForMD(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// truncateExpr shortens CEL expressions for table display
func truncateExpr(expr string, maxLen int) string {
	expr = strings.Join(strings.Fields(expr), " ")
	expr = strings.ReplaceAll(expr, "|", `\|`)

	runes := []rune(expr)
	if len(runes) <= maxLen {
		return expr
	}
	return string(runes[:maxLen-1]) + "…"
}

package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lockaudit/lockaudit/internal/models"
)

const (
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset
func ColorEnabled(f *os.File) bool {
	if f == nil || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type textWriter struct {
	w     io.Writer
	color bool
	err   error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) paint(color, s string) string {
	if !t.color {
		return s
	}
	return color + s + colorReset
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityHigh:
		return colorRed
	case models.SeverityMedium:
		return colorYellow
	case models.SeverityLow:
		return colorCyan
	default:
		return ""
	}
}

// WriteText renders the human-readable report: header, summary metrics,
// every finding, then the high-priority recommendations
func WriteText(w io.Writer, doc Document, color bool) error {
	t := &textWriter{w: w, color: color}

	t.printf("%s\n", t.paint(colorBold, "AppLocker Policy Inspection"))
	if doc.Source != "" {
		t.printf("Source:   %s\n", doc.Source)
	}
	if doc.Encoding != "" {
		t.printf("Encoding: %s\n", doc.Encoding)
	}
	if doc.SHA256 != "" {
		t.printf("SHA256:   %s\n", doc.SHA256)
	}
	t.printf("\n")

	if len(doc.Findings) == 0 {
		t.printf("%s\n", t.paint(colorGreen, "🎉 No security issues found"))
		return t.err
	}

	sum := Summarize(doc.Findings)
	t.printf("Summary\n")
	t.printf("  Total findings: %d\n", sum.Total)
	for _, c := range sum.BySeverity {
		label := fmt.Sprintf("%-7s", c.Severity.String()+":")
		t.printf("  %s %d\n", t.paint(severityColor(c.Severity), label), c.Count)
	}
	cols := make([]string, len(sum.ByCollection))
	for i, c := range sum.ByCollection {
		cols[i] = fmt.Sprintf("%s=%d", c.Collection, c.Count)
	}
	t.printf("  Collections: %s\n\n", strings.Join(cols, ", "))

	t.printf("Findings\n")
	for _, f := range doc.Findings {
		writeTextFinding(t, f)
	}

	high := HighPriority(doc.Findings)
	if len(high) > 0 {
		t.printf("\n%s\n", t.paint(colorRed, "High Priority Recommendations"))
		for i, f := range high {
			t.printf("  %d. Issue: %s\n", i+1, f.Reason())
			t.printf("     Recommendation: %s\n", f.Recommendation())
			t.printf("     Rule Type: %s\n", f.RuleType)
			t.printf("     Condition: %s\n", f.Condition)
		}
	}
	return t.err
}

func writeTextFinding(t *textWriter, f models.Finding) {
	tag := t.paint(severityColor(f.Severity), "["+strings.ToUpper(f.Severity.String())+"]")
	if f.RuleType == models.RuleTypeCollection {
		t.printf("%s %s rule collection\n", tag, f.Collection)
	} else {
		t.printf("%s %s %s %q (%s, %s)\n", tag, f.Collection, f.RuleType, f.RuleName, f.Action, f.Principal)
		t.printf("    Condition: %s: %s\n", f.ConditionType, f.Condition)
	}
	if r := f.Reason(); r != "" {
		t.printf("    Reason: %s\n", r)
	}
	if r := f.Recommendation(); r != "" {
		t.printf("    Recommendation: %s\n", r)
	}
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/lockaudit/lockaudit/internal/models"
)

// mdEscape keeps cell text from breaking the table
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// WriteMarkdown renders a summary table followed by a findings table
func WriteMarkdown(w io.Writer, doc Document) error {
	var b strings.Builder

	b.WriteString("# AppLocker Policy Inspection\n\n")
	if doc.Source != "" {
		fmt.Fprintf(&b, "- **Source:** `%s`\n", doc.Source)
	}
	if doc.Encoding != "" {
		fmt.Fprintf(&b, "- **Encoding:** %s\n", doc.Encoding)
	}
	if doc.SHA256 != "" {
		fmt.Fprintf(&b, "- **SHA256:** `%s`\n", doc.SHA256)
	}
	if doc.Source != "" || doc.Encoding != "" || doc.SHA256 != "" {
		b.WriteString("\n")
	}

	if len(doc.Findings) == 0 {
		b.WriteString("🎉 No security issues found\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	sum := Summarize(doc.Findings)
	b.WriteString("## Summary\n\n| Severity | Count |\n|---|---|\n")
	for _, c := range sum.BySeverity {
		fmt.Fprintf(&b, "| %s | %d |\n", c.Severity, c.Count)
	}
	fmt.Fprintf(&b, "| **Total** | %d |\n\n", sum.Total)

	b.WriteString("## Findings\n\n")
	b.WriteString("| " + strings.Join(models.RecordFields, " | ") + " |\n")
	b.WriteString(strings.Repeat("|---", len(models.RecordFields)) + "|\n")
	for _, f := range doc.Findings {
		vals := f.Record().Values()
		for i, v := range vals {
			vals[i] = mdEscape(v)
		}
		b.WriteString("| " + strings.Join(vals, " | ") + " |\n")
	}

	if high := HighPriority(doc.Findings); len(high) > 0 {
		b.WriteString("\n## High Priority Recommendations\n\n")
		for _, f := range high {
			fmt.Fprintf(&b, "- **%s** (%s, `%s`): %s\n", mdEscape(f.RuleName), f.RuleType, mdEscape(f.Condition), mdEscape(f.Recommendation()))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

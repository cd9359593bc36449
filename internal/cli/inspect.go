package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lockaudit/lockaudit/internal/gate"
	"github.com/lockaudit/lockaudit/internal/inspector"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/lockaudit/lockaudit/internal/report"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// inspectCmd definition
var inspectCmd = &cobra.Command{
	Use:   "inspect <policy|->",
	Short: "Inspect an exported AppLocker policy",
	Long: `Decodes an AppLocker policy export, assesses every rule collection
and rule, and prints the findings.

The policy may be a file path, "-" for stdin, or an https URL. Gzip and
zstd compressed exports are decompressed transparently.

Example:
  lockaudit inspect policy.xml
  lockaudit inspect --format sarif --output findings.sarif policy.xml
  lockaudit inspect --severity High,Medium --collection Exe policy.xml
  lockaudit inspect --gate strict policy.xml
  Get-AppLockerPolicy -Effective -Xml | lockaudit inspect -`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectFormat       string
	inspectOutput       string
	inspectSeverities   []string
	inspectCollections  []string
	inspectFailOn       string
	inspectGate         string
	inspectAllowPrivate bool
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "Output format: text, json, csv, sarif, markdown")
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "", "Write the report to a file (default: stdout)")
	inspectCmd.Flags().StringSliceVar(&inspectSeverities, "severity", nil, "Only show these severities (High, Medium, Low, Info)")
	inspectCmd.Flags().StringSliceVar(&inspectCollections, "collection", nil, "Only show these collections (Exe, Script, Msi, Dll, Appx)")
	inspectCmd.Flags().StringVar(&inspectFailOn, "fail-on", "", "Exit 1 when a finding reaches this severity: high, medium, low, info")
	inspectCmd.Flags().StringVar(&inspectGate, "gate", "", "Evaluate a gate: preset name (baseline, strict) or YAML file")
	inspectCmd.Flags().BoolVar(&inspectAllowPrivate, "allow-private-hosts", false, "Allow policy URLs that resolve to private addresses")
}

// GetInspectCmd exports the inspect command
func GetInspectCmd() *cobra.Command {
	return inspectCmd
}

func runInspect(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "lockaudit inspect", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	format, err := report.ParseFormat(inspectFormat)
	if err != nil {
		return err
	}
	severities, err := report.ParseSeverities(inspectSeverities...)
	if err != nil {
		return err
	}
	failOn, err := gate.ParseFailOn(inspectFailOn)
	if err != nil {
		return err
	}
	var (
		gateConfig *models.GateConfig
		gateSource gate.Source
	)
	if inspectGate != "" {
		gateConfig, gateSource, err = gate.Resolve(inspectGate)
		if err != nil {
			return err
		}
	}

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "lockaudit.command.inspect",
		attribute.String("lockaudit.op_id", observability.OpID(ctx)),
		attribute.String("lockaudit.format", string(format)),
		attribute.String("lockaudit.gate", inspectGate),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "inspect_cmd.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "inspect_cmd.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	source, res, err := inspectSource(ctx, args[0], inspectAllowPrivate)
	if err != nil {
		if source != nil {
			receiptOpts = append(receiptOpts, receipt.WithSource(source.Name, source.SHA256, ""))
		}
		resultStatus = "fail"
		return err
	}
	receiptOpts = append(receiptOpts,
		receipt.WithSource(source.Name, source.SHA256, res.Encoding),
		receipt.WithFindings(findingsSummary(res.Findings)),
	)

	shown := report.Filter(res.Findings, report.Criteria{
		Severities:  severities,
		Collections: report.ParseCollections(inspectCollections...),
	})
	doc := report.Document{
		Source:   source.Name,
		SHA256:   res.SHA256,
		Encoding: res.Encoding,
		Findings: shown,
	}

	w, closeOut, err := openOutput(cmd, inspectOutput)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	toStdout := inspectOutput == "" || inspectOutput == "-"
	color := toStdout && format == report.FormatText && report.ColorEnabled(os.Stdout)
	if err := report.Write(w, format, doc, report.Options{Color: color}); err != nil {
		_ = closeOut()
		resultStatus = "fail"
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := closeOut(); err != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to write report: %w", err)
	}
	if !toStdout {
		receiptOpts = append(receiptOpts, receipt.WithArtifact("report", inspectOutput))
	}

	// keep stdout machine-readable when a structured report was printed there
	status := cmd.OutOrStdout()
	if toStdout && format != report.FormatText {
		status = cmd.ErrOrStderr()
	}
	if !toStdout {
		fmt.Fprintf(status, "%s✓ Report written: %s%s\n", colorGreen, inspectOutput, colorReset)
	}

	failed := false

	// thresholds and gates see every finding; filters only narrow the report
	if failOn.Set {
		if hits := failOn.Hits(res.Findings); hits > 0 {
			fmt.Fprintf(status, "\n%s%s✗ %d finding(s) at or above %s%s\n", colorBold, colorRed, hits, failOn, colorReset)
			failed = true
		}
	}

	if gateConfig != nil {
		outcome, hits, gateErr := runGate(status, gateConfig, res)
		receiptOpts = append(receiptOpts, receipt.WithGate(gateSource.Name, string(outcome.Status), hits))
		if gateErr != nil {
			resultStatus = "fail"
			return gateErr
		}
		if !outcome.Passed() {
			failed = true
		}
	}

	span.SetAttributes(attribute.Int("lockaudit.findings", len(res.Findings)))
	if failed {
		resultStatus = "fail"
		return errCheckFailed
	}
	resultStatus = "success"
	return nil
}

// runGate evaluates config against an inspection and prints the rule results
func runGate(w io.Writer, config *models.GateConfig, res *inspector.Result) (gate.Outcome, []receipt.RuleHit, error) {
	engine, err := gate.NewEngine()
	if err != nil {
		return gate.Outcome{Status: gate.StatusFail}, nil, fmt.Errorf("failed to create gate engine: %w", err)
	}
	outcome, err := engine.Run(config, gate.BuildInput(res.Document, res.Encoding, res.Findings))
	if err != nil {
		return outcome, nil, err
	}
	return outcome, printGateOutcome(w, config, outcome), nil
}

func printGateOutcome(w io.Writer, config *models.GateConfig, outcome gate.Outcome) []receipt.RuleHit {
	var hits []receipt.RuleHit

	fmt.Fprintf(w, "\n%s%sGate:%s %s\n", colorBold, colorYellow, colorReset, config.Name)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, result := range outcome.Results {
		if result.Passed {
			fmt.Fprintf(w, "%s✓%s %s\n", colorGreen, colorReset, result.RuleName)
			continue
		}
		sev := string(result.Severity)
		if result.Severity == models.GateSeverityWarn {
			fmt.Fprintf(w, "%s⚠%s %s\n", colorYellow, colorReset, result.RuleName)
			fmt.Fprintf(w, "  %s→ %s%s\n", colorYellow, result.FailureMsg, colorReset)
		} else {
			sev = string(models.GateSeverityError)
			fmt.Fprintf(w, "%s✗%s %s\n", colorRed, colorReset, result.RuleName)
			fmt.Fprintf(w, "  %s→ %s%s\n", colorRed, result.FailureMsg, colorReset)
		}
		hits = append(hits, receipt.RuleHit{Name: result.RuleName, Severity: sev, ControlRefs: result.ControlRefs})
	}
	fmt.Fprintln(w, strings.Repeat("-", 50))

	switch outcome.Status {
	case gate.StatusPass:
		fmt.Fprintf(w, "\n%s%s✓ All gate checks passed%s\n", colorBold, colorGreen, colorReset)
	case gate.StatusWarn:
		fmt.Fprintf(w, "\n%s%s⚠ Gate passed with warnings%s\n", colorBold, colorYellow, colorReset)
	default:
		if config.Mode != models.GateModeWarn && len(outcome.Failed()) > 0 && !hasErrorSeverity(outcome.Failed()) {
			fmt.Fprintf(w, "\n%s%s✗ Gate failed (strict mode)%s\n", colorBold, colorRed, colorReset)
		} else {
			fmt.Fprintf(w, "\n%s%s✗ Gate failed%s\n", colorBold, colorRed, colorReset)
		}
	}
	return hits
}

func hasErrorSeverity(results []models.GateResult) bool {
	for _, r := range results {
		if r.Severity != models.GateSeverityWarn {
			return true
		}
	}
	return false
}

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/lockaudit/lockaudit/internal/baseline"
	"github.com/lockaudit/lockaudit/internal/differ"
	"github.com/lockaudit/lockaudit/internal/gate"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff <policy|->",
	Short: "Compare a policy's findings against a saved baseline",
	Long: `Diff inspects the policy and compares its findings against a baseline
written by 'lockaudit baseline save'.

Each finding is matched by fingerprint. New findings are reported as
FINDING_ADDED with their own severity, resolved ones as FINDING_REMOVED, and
findings whose severity, reasons or recommendation moved as FINDING_CHANGED
with a plain-English description of what changed.

Exits 1 when an added or escalated finding reaches --fail-on, or when an
optional --gate denies.

Example:
  lockaudit diff policy.xml
  lockaudit diff --baseline baselines/prod.json --fail-on medium policy.xml
  lockaudit diff --gate strict --json policy.xml
  lockaudit diff --verify-key public.key policy.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

var (
	diffBaselineFlag string
	diffFailOnFlag   string
	diffGateFlag     string
	diffJSONFlag     bool
	diffAllowPrivate bool
	diffVerifyKey    string
)

func init() {
	diffCmd.Flags().StringVarP(&diffBaselineFlag, "baseline", "b", baseline.DefaultPath, "Path to the baseline")
	diffCmd.Flags().StringVar(&diffFailOnFlag, "fail-on", "high", "Fail when added or escalated findings reach: high, medium, low, info, none")
	diffCmd.Flags().StringVar(&diffGateFlag, "gate", "", "Also evaluate a gate: preset name or YAML file")
	diffCmd.Flags().BoolVar(&diffJSONFlag, "json", false, "Output JSON")
	diffCmd.Flags().StringVar(&diffVerifyKey, "verify-key", "", "Public key; refuse a baseline whose <baseline>.sig does not verify")
	diffCmd.Flags().BoolVar(&diffAllowPrivate, "allow-private-hosts", false, "Allow policy URLs that resolve to private addresses")
}

// GetDiffCmd returns the diff command
func GetDiffCmd() *cobra.Command {
	return diffCmd
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "lockaudit diff", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	failOn, err := gate.ParseFailOn(diffFailOnFlag)
	if err != nil {
		return err
	}

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "lockaudit.command.diff",
		attribute.String("lockaudit.op_id", observability.OpID(ctx)),
		attribute.String("lockaudit.fail_on", failOn.String()),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "diff.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "diff.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	if diffVerifyKey != "" {
		if err := verifyBaselineSignature(cmd, diffBaselineFlag, diffVerifyKey, baseline.SignaturePath(diffBaselineFlag)); err != nil {
			resultStatus = "fail"
			return err
		}
	}

	manager := baseline.NewManager()
	accepted, err := manager.Load(diffBaselineFlag)
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to load baseline: %w (run 'lockaudit baseline save' first)", err)
	}

	src, res, err := inspectSource(ctx, args[0], diffAllowPrivate)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	receiptOpts = append(receiptOpts,
		receipt.WithSource(src.Name, src.SHA256, res.Encoding),
		receipt.WithFindings(findingsSummary(res.Findings)),
	)

	drift, err := differ.Compare(accepted, res.Findings)
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("diff failed: %w", err)
	}
	added, removed, changed, escalated := drift.Counts()
	receiptOpts = append(receiptOpts, receipt.WithDrift(receipt.DriftSummary{
		Added:     added,
		Removed:   removed,
		Changed:   changed,
		Escalated: escalated,
		Summary:   drift.Summary(),
	}))
	span.SetAttributes(attribute.Int("lockaudit.drift_items", len(drift.Items)))

	var outcome *gate.Outcome
	var gateName string
	if diffGateFlag != "" {
		config, source, gateErr := gate.Resolve(diffGateFlag)
		if gateErr != nil {
			resultStatus = "fail"
			return gateErr
		}
		engine, gateErr := gate.NewEngine()
		if gateErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to create gate engine: %w", gateErr)
		}
		o, gateErr := engine.Run(config, gate.BuildInput(res.Document, res.Encoding, res.Findings))
		if gateErr != nil {
			resultStatus = "fail"
			return gateErr
		}
		outcome = &o
		gateName = source.Name

		var hits []receipt.RuleHit
		for _, r := range o.Failed() {
			hits = append(hits, receipt.RuleHit{Name: r.RuleName, Severity: string(r.Severity), ControlRefs: r.ControlRefs})
		}
		receiptOpts = append(receiptOpts, receipt.WithGate(gateName, string(o.Status), hits))
	}

	result := BuildDiffResult(diffBaselineFlag, src.Name, drift, outcome, gateName, failOn)

	if diffJSONFlag {
		b, jsonErr := FormatJSONOutput(result)
		if jsonErr != nil {
			resultStatus = "fail"
			return jsonErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), FormatTextOutput(result))
	}

	if result.Outcome == "FAIL" {
		resultStatus = "fail"
		return errCheckFailed
	}
	resultStatus = "success"
	return nil
}

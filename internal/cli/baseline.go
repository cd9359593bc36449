package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/lockaudit/lockaudit/internal/baseline"
	"github.com/lockaudit/lockaudit/internal/differ"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// baselineCmd group
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage accepted-findings baselines",
}

// baselineSaveCmd
var baselineSaveCmd = &cobra.Command{
	Use:   "save <policy|->",
	Short: "Save current findings to applocker-baseline.json",
	Long: `Inspects the policy and records its findings with stable fingerprints.
Later runs of 'lockaudit diff' report findings added, removed or changed
against this baseline.

If the baseline already exists and the findings have drifted, the file is
left untouched unless --force is given.

Example:
  lockaudit baseline save policy.xml
  lockaudit baseline save --output baselines/prod.json --force policy.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runBaselineSave,
}

var (
	baselineOutputFlag  string
	baselineForceFlag   bool
	baselineAllowPrivate bool
)

func init() {
	baselineSaveCmd.Flags().StringVarP(&baselineOutputFlag, "output", "o", baseline.DefaultPath, "Output path for the baseline")
	baselineSaveCmd.Flags().BoolVarP(&baselineForceFlag, "force", "f", false, "Overwrite the baseline even if drift is detected")
	baselineSaveCmd.Flags().BoolVar(&baselineAllowPrivate, "allow-private-hosts", false, "Allow policy URLs that resolve to private addresses")
	baselineCmd.AddCommand(baselineSaveCmd)
}

// GetBaselineCmd export
func GetBaselineCmd() *cobra.Command {
	return baselineCmd
}

func runBaselineSave(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "lockaudit baseline save", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "lockaudit.command.baseline_save",
		attribute.String("lockaudit.op_id", observability.OpID(ctx)),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "baseline_save.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "baseline_save.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	src, res, err := inspectSource(ctx, args[0], baselineAllowPrivate)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	receiptOpts = append(receiptOpts,
		receipt.WithSource(src.Name, src.SHA256, res.Encoding),
		receipt.WithFindings(findingsSummary(res.Findings)),
	)

	manager := baseline.NewManager()
	next, err := manager.Build(models.BaselineSource{
		Path:     src.Name,
		SHA256:   src.SHA256,
		Encoding: res.Encoding,
	}, res.Findings)
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to build baseline: %w", err)
	}

	// check for drift
	if manager.Exists(baselineOutputFlag) {
		existing, loadErr := manager.Load(baselineOutputFlag)
		if loadErr != nil {
			fmt.Fprintf(errOut, "%sWarning: Could not load existing baseline: %v%s\n", colorRed, loadErr, colorReset)
		} else {
			result, cmpErr := differ.Compare(existing, res.Findings)
			if cmpErr != nil {
				resultStatus = "fail"
				return fmt.Errorf("failed to compare with existing baseline: %w", cmpErr)
			}
			if result.HasDrift {
				fmt.Fprintf(errOut, "\n%s╔══════════════════════════════════════╗%s\n", colorRed, colorReset)
				fmt.Fprintf(errOut, "%s║         DRIFT DETECTED!              ║%s\n", colorRed, colorReset)
				fmt.Fprintf(errOut, "%s╚══════════════════════════════════════╝%s\n\n", colorRed, colorReset)
				for _, item := range result.Items {
					fmt.Fprintf(errOut, "%s  ✗ %s: %s%s\n", colorRed, item.Type, item.Message, colorReset)
				}
				fmt.Fprintln(errOut)

				if !baselineForceFlag {
					fmt.Fprintf(errOut, "Use --force to overwrite the baseline anyway.\n")
					resultStatus = "fail"
					return errCheckFailed
				}
				fmt.Fprintf(errOut, "%sForce flag set, overwriting baseline...%s\n", colorRed, colorReset)
			} else {
				fmt.Fprintf(out, "%s✓ No drift detected - baseline is up to date%s\n", colorGreen, colorReset)
				resultStatus = "success"
				return nil
			}
		}
	}

	if err := manager.Save(next, baselineOutputFlag); err != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	receiptOpts = append(receiptOpts, receipt.WithArtifact("baseline", baselineOutputFlag))

	fmt.Fprintf(out, "%s✓ Baseline created: %s%s\n", colorGreen, baselineOutputFlag, colorReset)
	fmt.Fprintf(out, "  Recorded %d finding(s)\n", len(next.Findings))
	resultStatus = "success"
	return nil
}

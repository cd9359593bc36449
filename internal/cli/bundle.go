package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/lockaudit/lockaudit/internal/bundler"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultBundlePath = "evidence.zip"
)

// bundleCmd represents the bundle command
var bundleCmd = &cobra.Command{
	Use:   "bundle <policy|->",
	Short: "Export an inspection as a deterministic evidence ZIP",
	Long: `Inspect the policy and package the results into a reproducible ZIP.

The bundle contains:
  - policy.xml (the policy bytes as inspected)
  - findings.csv, findings.json, findings.sarif
  - README.md (summary and high-priority recommendations)
  - manifest.json (tool version, encoding, sha256 and size per file)

The bundle is fully deterministic - identical inputs produce identical outputs.

Example:
  lockaudit bundle policy.xml
  lockaudit bundle -o audit-2024Q3.zip policy.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

var (
	bundleOutputFlag   string
	bundleAllowPrivate bool
)

func init() {
	bundleCmd.Flags().StringVarP(&bundleOutputFlag, "output", "o", defaultBundlePath, "Path for the output ZIP file")
	bundleCmd.Flags().BoolVar(&bundleAllowPrivate, "allow-private-hosts", false, "Allow policy URLs that resolve to private addresses")
}

// GetBundleCmd returns the bundle command
func GetBundleCmd() *cobra.Command {
	return bundleCmd
}

func runBundle(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "lockaudit bundle", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "lockaudit.command.bundle",
		attribute.String("lockaudit.op_id", observability.OpID(ctx)),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "bundle.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "bundle.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	src, res, err := inspectSource(ctx, args[0], bundleAllowPrivate)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	receiptOpts = append(receiptOpts,
		receipt.WithSource(src.Name, src.SHA256, res.Encoding),
		receipt.WithFindings(findingsSummary(res.Findings)),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Creating evidence bundle...\n")
	manifest, err := bundler.CreateBundle(bundleOutputFlag, bundler.Input{
		Source:   src.Name,
		SHA256:   src.SHA256,
		Encoding: res.Encoding,
		Policy:   src.Data,
		Findings: res.Findings,
	})
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("bundle creation failed: %w", err)
	}
	receiptOpts = append(receiptOpts, receipt.WithArtifact("bundle", bundleOutputFlag))

	fmt.Fprintf(out, "%s✓ Bundle created: %s%s\n", colorGreen, bundleOutputFlag, colorReset)
	fmt.Fprintf(out, "\nBundle contents:\n")
	for _, f := range manifest.Files {
		fmt.Fprintf(out, "  • %s (%d bytes)\n", f.Name, f.Size)
	}
	fmt.Fprintf(out, "  • %s (bundle metadata)\n", bundler.ManifestName)
	fmt.Fprintf(out, "\nSummary: %s\n", manifest.Summary)

	resultStatus = "success"
	return nil
}

package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lockaudit/lockaudit/internal/gate"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// gateCmd group
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Evaluate CI gates over inspection findings",
	Long: `Gates are CEL rules evaluated against the findings of an inspection.

Built-in presets:
  baseline  warn-only; flags unconfigured collections and High findings
  strict    fail-closed; no High or Medium findings, no AuditOnly collections`,
}

// gateCheckCmd runs a gate against a policy
var gateCheckCmd = &cobra.Command{
	Use:   "check <policy|->",
	Short: "Inspect a policy and evaluate a gate",
	Long: `Inspects the policy and evaluates every gate rule against the findings.

Exits 1 when the gate fails. In strict mode warn-severity rules fail the
gate too; in warn mode they are reported and the gate passes.

Example:
  lockaudit gate check --preset strict policy.xml
  lockaudit gate check --policy ./ci-gate.yaml policy.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runGateCheck,
}

// gateExplainCmd outputs gate rules with metadata
var gateExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Output gate rules with compliance metadata",
	Long: `Display gate rules with their control references in human-readable
Markdown or machine-readable JSON.

Example:
  lockaudit gate explain --preset strict
  lockaudit gate explain --preset baseline --json
  lockaudit gate explain --policy ./ci-gate.yaml --output gate.md`,
	RunE: runGateExplain,
}

var (
	gatePreset       string
	gatePolicy       string
	gateAllowPrivate bool

	explainJSON   bool
	explainOutput string
)

func init() {
	gateCmd.PersistentFlags().StringVar(&gatePreset, "preset", "", "Use built-in preset: baseline or strict")
	gateCmd.PersistentFlags().StringVarP(&gatePolicy, "policy", "P", "", "Path to gate YAML file")

	gateCheckCmd.Flags().BoolVar(&gateAllowPrivate, "allow-private-hosts", false, "Allow policy URLs that resolve to private addresses")

	gateExplainCmd.Flags().BoolVar(&explainJSON, "json", false, "Output JSON instead of Markdown")
	gateExplainCmd.Flags().StringVar(&explainOutput, "output", "", "Write output to file (default: stdout)")

	gateCmd.AddCommand(gateCheckCmd)
	gateCmd.AddCommand(gateExplainCmd)
}

// GetGateCmd export
func GetGateCmd() *cobra.Command {
	return gateCmd
}

// loadGate picks --policy or --preset; baseline when neither is set
func loadGate(preset, path string) (*models.GateConfig, gate.Source, error) {
	if preset != "" && path != "" {
		return nil, gate.Source{}, fmt.Errorf("cannot use both --preset and --policy; choose one")
	}
	if path != "" {
		config, err := gate.LoadFile(path)
		if err != nil {
			return nil, gate.Source{}, err
		}
		return config, gate.Source{Type: "file", Name: path}, nil
	}
	if preset == "" {
		preset = "baseline"
	}
	config := gate.GetPreset(preset)
	if config == nil {
		return nil, gate.Source{}, fmt.Errorf("unknown preset: %s (valid: %s)", preset, strings.Join(gate.ListPresetNames(), ", "))
	}
	return config, gate.Source{Type: "preset", Name: preset}, nil
}

func runGateCheck(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "lockaudit gate check", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	ctx, span := otelobs.Start(ctx, "lockaudit.command.gate_check",
		attribute.String("lockaudit.op_id", observability.OpID(ctx)),
		attribute.String("lockaudit.preset", gatePreset),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "gate_check.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "gate_check.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	config, source, err := loadGate(gatePreset, gatePolicy)
	if err != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to load gate: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s%sGate:%s %s (%s %s)\n", colorBold, colorYellow, colorReset, config.Name, source.Type, source.Name)

	src, res, err := inspectSource(ctx, args[0], gateAllowPrivate)
	if err != nil {
		resultStatus = "fail"
		return err
	}
	receiptOpts = append(receiptOpts,
		receipt.WithSource(src.Name, src.SHA256, res.Encoding),
		receipt.WithFindings(findingsSummary(res.Findings)),
	)
	fmt.Fprintf(out, "Inspected %s (%s, %d finding(s))\n", src.Name, res.Encoding, len(res.Findings))

	outcome, hits, err := runGate(out, config, res)
	receiptOpts = append(receiptOpts, receipt.WithGate(source.Name, string(outcome.Status), hits))
	if err != nil {
		resultStatus = "fail"
		return err
	}
	if !outcome.Passed() {
		resultStatus = "fail"
		return errCheckFailed
	}
	resultStatus = "success"
	return nil
}

func runGateExplain(cmd *cobra.Command, args []string) error {
	config, source, err := loadGate(gatePreset, gatePolicy)
	if err != nil {
		return err
	}

	var output string
	if explainJSON {
		output, err = gate.ExplainJSON(config, source, time.Now())
		if err != nil {
			return err
		}
	} else {
		output = gate.ExplainMarkdown(config, source)
	}

	if explainOutput != "" {
		if err := os.WriteFile(explainOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Output written to %s\n", explainOutput)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

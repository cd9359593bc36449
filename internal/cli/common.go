package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lockaudit/lockaudit/internal/fetch"
	"github.com/lockaudit/lockaudit/internal/inspector"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/lockaudit/lockaudit/internal/report"
	"github.com/spf13/cobra"
)

// ANSI colours for status lines; blanked when stdout is not a terminal
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

func init() {
	if !report.ColorEnabled(os.Stdout) {
		colorReset, colorRed, colorGreen, colorYellow, colorBold = "", "", "", "", ""
	}
}

// inspectSource fetches src and runs the inspection pipeline over it
func inspectSource(ctx context.Context, src string, allowPrivate bool) (*fetch.Source, *inspector.Result, error) {
	cfg := fetch.DefaultConfig()
	cfg.AllowPrivateHosts = allowPrivate

	source, err := fetch.New(cfg).Read(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	res, err := inspector.New().Inspect(ctx, source.Name, source.Data)
	if err != nil {
		return source, nil, err
	}
	return source, res, nil
}

// findingsSummary for receipts
func findingsSummary(findings []models.Finding) receipt.FindingsSummary {
	s := report.Summarize(findings)
	return receipt.FindingsSummary{
		High:   s.Count(models.SeverityHigh),
		Medium: s.Count(models.SeverityMedium),
		Low:    s.Count(models.SeverityLow),
		Info:   s.Count(models.SeverityInfo),
		Total:  s.Total,
	}
}

// openOutput returns stdout for "" or "-", else a created file
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/observability/receipt"
	"github.com/lockaudit/lockaudit/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lockaudit",
	Short: "Risk assessment for AppLocker policy exports",
	Long: `lockaudit: inspect exported AppLocker policies.
Flags unconfigured collections, broad path rules, wildcard publisher
rules and weak hash rules, then reports, gates and baselines the results.`,
	Version:            version.BuildVersion(),
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setupRun,
	PersistentPostRunE: teardownRun,
}

var (
	logFormat     string
	logLevel      string
	logOutput     string
	logMaxSizeMB  int
	logMaxBackups int
	logMaxAgeDays int

	receiptPath string
	receiptMode string

	otelEnabled     bool
	otelEndpoint    string
	otelProtocol    string
	otelInsecure    bool
	otelSampleRatio float64
)

// run-scoped handles closed in teardownRun
var (
	runLogger  logging.Logger
	runOtel    *otelobs.Handle
	runReceipt receipt.Writer
)

// errCheckFailed signals exit code 1 after the command already reported why
var errCheckFailed = errors.New("check failed")

func Execute() {
	err := rootCmd.Execute()
	closeRun()
	if err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	defaults := logging.DefaultConfig()
	otelDefaults := otelobs.DefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormat, "log-format", defaults.Format, "Log format: pretty or jsonl")
	pf.StringVar(&logLevel, "log-level", defaults.Level, "Log level: debug, info, warn, error")
	pf.StringVar(&logOutput, "log-output", defaults.Output, "Log destination: stderr, stdout, or a file path")
	pf.IntVar(&logMaxSizeMB, "log-max-size-mb", defaults.MaxSizeMB, "Rotate log files at this size")
	pf.IntVar(&logMaxBackups, "log-max-backups", defaults.MaxBackups, "Rotated log files to keep")
	pf.IntVar(&logMaxAgeDays, "log-max-age-days", defaults.MaxAgeDays, "Days to keep rotated log files")

	pf.StringVar(&receiptPath, "receipt", "", "Write a JSON audit receipt to this path")
	pf.StringVar(&receiptMode, "receipt-mode", string(receipt.ModeOverwrite), "Receipt write mode: overwrite or append")

	pf.BoolVar(&otelEnabled, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocol, "otel-protocol", otelDefaults.Protocol, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecure, "otel-insecure", false, "Disable TLS for the OTLP exporter")
	pf.Float64Var(&otelSampleRatio, "otel-sample-ratio", otelDefaults.SampleRatio, "Trace sample ratio between 0 and 1")

	rootCmd.AddCommand(GetInspectCmd())
	rootCmd.AddCommand(GetGateCmd())
	rootCmd.AddCommand(GetBaselineCmd())
	rootCmd.AddCommand(GetDiffCmd())
	rootCmd.AddCommand(GetBundleCmd())
	rootCmd.AddCommand(GetKeygenCmd())
	rootCmd.AddCommand(GetServeCmd())
	rootCmd.AddCommand(GetVersionCmd())
}

// setupRun attaches op ID, logger, tracer and receipt writer to the command context
func setupRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithOpID(ctx)

	if _, err := receipt.ParseMode(receiptMode); err != nil {
		return err
	}

	logCfg := logging.Config{
		Format:     logFormat,
		Level:      logLevel,
		Output:     logOutput,
		MaxSizeMB:  logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAgeDays: logMaxAgeDays,
	}
	if err := logCfg.Validate(); err != nil {
		return err
	}
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	runLogger = log
	ctx = logging.WithLogger(ctx, log)

	if otelEnabled {
		cfg := otelobs.DefaultConfig()
		cfg.Enabled = true
		cfg.Endpoint = otelEndpoint
		cfg.Protocol = otelProtocol
		cfg.Insecure = otelInsecure
		cfg.SampleRatio = otelSampleRatio
		h, err := otelobs.Init(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		runOtel = h
		ctx = otelobs.WithHandle(ctx, h)
	}

	if receiptPath != "" {
		w, err := receipt.NewWriter(receiptPath, receiptMode)
		if err != nil {
			return fmt.Errorf("failed to open receipt: %w", err)
		}
		runReceipt = w
		ctx = receipt.WithWriter(ctx, w)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardownRun(cmd *cobra.Command, args []string) error {
	closeRun()
	return nil
}

// closeRun flushes run-scoped handles; safe to call twice
func closeRun() {
	if runReceipt != nil {
		_ = runReceipt.Close()
		runReceipt = nil
	}
	if runOtel != nil && runOtel.Shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = runOtel.Shutdown(ctx)
		cancel()
		runOtel = nil
	}
	if runLogger != nil {
		_ = runLogger.Close()
		runLogger = nil
	}
}

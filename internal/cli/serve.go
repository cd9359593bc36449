package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/lockaudit/lockaudit/internal/inspector"
	"github.com/lockaudit/lockaudit/internal/metrics"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	"github.com/lockaudit/lockaudit/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP inspection service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve policy inspection over HTTP",
	Long: `Runs an HTTP service that inspects uploaded AppLocker policies.

Endpoints:
  POST /v1/inspect   raw policy body (optionally gzip); ?format=json|csv|sarif|markdown|text,
                     ?severity=High,Medium and ?collection=Exe filters
  GET  /healthz      liveness
  GET  /metrics      Prometheus metrics

Results are cached by document SHA-256 and clients are rate limited per IP.
SIGINT or SIGTERM drains in-flight requests before exiting.

Example:
  lockaudit serve --addr :8080
  curl --data-binary @policy.xml 'http://localhost:8080/v1/inspect?severity=High'`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveCfg = server.DefaultConfig()

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveCfg.Addr, "addr", serveCfg.Addr, "Listen address")
	f.Int64Var(&serveCfg.MaxBodyBytes, "max-body", serveCfg.MaxBodyBytes, "Maximum request body size in bytes")
	f.IntVar(&serveCfg.CacheSize, "cache-size", serveCfg.CacheSize, "Maximum cached inspection results")
	f.DurationVar(&serveCfg.CacheTTL, "cache-ttl", serveCfg.CacheTTL, "How long cached results stay valid")
	f.Float64Var(&serveCfg.RatePerSecond, "rate", serveCfg.RatePerSecond, "Requests per second per client (0 disables)")
	f.IntVar(&serveCfg.RateBurst, "burst", serveCfg.RateBurst, "Burst size per client")
	f.DurationVar(&serveCfg.ShutdownTimeout, "shutdown-timeout", serveCfg.ShutdownTimeout, "Grace period for in-flight requests")
}

// GetServeCmd export
func GetServeCmd() *cobra.Command {
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "serve.start", map[string]any{"addr": serveCfg.Addr})

	srv := server.New(serveCfg,
		server.WithInspector(inspector.New()),
		server.WithMetrics(metrics.New(nil)),
		server.WithLogger(log),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Listening on %s%s\n", colorGreen, serveCfg.Addr, colorReset)
	err := srv.ListenAndServe(ctx)
	log.Event(ctx, "serve.complete", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"result":      resultOf(err),
	})
	return err
}

func resultOf(err error) string {
	if err != nil {
		return "fail"
	}
	return "success"
}

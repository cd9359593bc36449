// Package otel wires OpenTelemetry tracing into inspections. Tracing is off
// unless --otel is given; spans are then exported over OTLP.
package otel

import (
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// OTLP transports
const (
	ProtocolHTTP = "otlphttp"
	ProtocolGRPC = "otlpgrpc"
)

const (
	defaultHTTPEndpoint = "http://localhost:4318"
	defaultGRPCEndpoint = "localhost:4317"
	endpointEnv         = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config for Init
type Config struct {
	Enabled     bool
	Endpoint    string
	Protocol    string
	Insecure    bool
	ServiceName string
	// SampleRatio is the fraction of root spans kept, 0..1
	SampleRatio float64
}

// DefaultConfig has tracing disabled
func DefaultConfig() Config {
	return Config{
		Protocol:    ProtocolHTTP,
		ServiceName: "lockaudit",
		SampleRatio: 1.0,
	}
}

// Validate is a no-op for a disabled config
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return fmt.Errorf("otel: unknown protocol %q (use %s or %s)", c.Protocol, ProtocolHTTP, ProtocolGRPC)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("otel: sample ratio %v outside [0, 1]", c.SampleRatio)
	}
	return nil
}

// ResolvedEndpoint prefers the flag, then OTEL_EXPORTER_OTLP_ENDPOINT, then
// the collector default for the protocol
func (c Config) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if env := os.Getenv(endpointEnv); env != "" {
		return env
	}
	if c.Protocol == ProtocolGRPC {
		return defaultGRPCEndpoint
	}
	return defaultHTTPEndpoint
}

func (c Config) sampler() sdktrace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return sdktrace.AlwaysSample()
	case c.SampleRatio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
	}
}

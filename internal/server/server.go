// Package server exposes the inspection pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/lockaudit/lockaudit/internal/fetch"
	"github.com/lockaudit/lockaudit/internal/inspector"
	"github.com/lockaudit/lockaudit/internal/metrics"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
)

const component = "server"

// Config holds the listener, cache and rate-limit settings. New fills unset
// size, TTL, burst and shutdown fields from DefaultConfig; a zero
// RatePerSecond disables limiting.
type Config struct {
	Addr            string
	MaxBodyBytes    int64
	CacheSize       int
	CacheTTL        time.Duration
	RatePerSecond   float64
	RateBurst       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used by `lockaudit serve`
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodyBytes:    fetch.DefaultMaxSize,
		CacheSize:       256,
		CacheTTL:        10 * time.Minute,
		RatePerSecond:   5,
		RateBurst:       10,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// maxTrackedClients bounds the per-client limiter table
const maxTrackedClients = 4096

// limiterIdleTTL is how long a client may stay silent before its bucket is
// dropped
const limiterIdleTTL = 10 * time.Minute

type Server struct {
	cfg       Config
	inspector *inspector.Inspector
	metrics   *metrics.Collector
	log       logging.Logger

	// results keyed by SHA-256 of the decompressed body
	cache *expirable.LRU[string, *inspector.Result]
	// limiters keyed by client IP; limMu serializes get-or-create
	limMu    sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// Option configures a Server
type Option func(*Server)

// WithInspector sets the pipeline used for uploads
func WithInspector(i *inspector.Inspector) Option {
	return func(s *Server) { s.inspector = i }
}

// WithMetrics sets the collector behind /metrics
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the base logger
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New builds a Server, filling unset Config fields from DefaultConfig
func New(cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.inspector == nil {
		s.inspector = inspector.New()
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.log == nil {
		s.log = logging.From(context.Background())
	}
	s.log = s.log.WithComponent(component)

	s.cache = expirable.NewLRU[string, *inspector.Result](cfg.CacheSize, nil, cfg.CacheTTL)
	s.limiters = expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, limiterIdleTTL)
	return s
}

// Handler routes the service endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/inspect", s.handleInspect)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight
// requests for up to ShutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(component, "listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(component, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// allow applies the per-client token bucket. Get does not extend an
// expirable entry, so every request re-adds the limiter to restart its TTL;
// a bucket is only rebuilt (with a fresh burst) after limiterIdleTTL of
// silence.
func (s *Server) allow(r *http.Request) bool {
	if s.cfg.RatePerSecond <= 0 {
		return true
	}
	return s.limiterFor(clientIP(r)).Allow()
}

func (s *Server) limiterFor(key string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	lim, ok := s.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.RateBurst)
	}
	s.limiters.Add(key, lim)
	return lim
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

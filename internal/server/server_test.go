package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lockaudit/lockaudit/internal/decoder"
	"github.com/lockaudit/lockaudit/internal/metrics"
)

const testPolicy = `<AppLockerPolicy Version="1">
  <RuleCollection Type="Exe" EnforcementMode="Enabled">
    <FilePathRule Id="1" Name="AppData tools" UserOrGroupSid="S-1-1-0" Action="Allow">
      <Conditions><FilePathCondition Path="%OSDRIVE%\Users\*\AppData\*"/></Conditions>
    </FilePathRule>
  </RuleCollection>
  <RuleCollection Type="Script" EnforcementMode="NotConfigured"/>
  <RuleCollection Type="Msi" EnforcementMode="AuditOnly"/>
</AppLockerPolicy>`

type envelope struct {
	Encoding string `json:"encoding"`
	Summary  struct {
		Total int `json:"total"`
	} `json:"summary"`
	Findings []map[string]string `json:"findings"`
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return New(cfg, WithMetrics(m))
}

func post(t *testing.T, h http.Handler, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
	return env
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestInspectJSONAndCache(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	h := s.Handler()

	rec := post(t, h, "/v1/inspect", []byte(testPolicy))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Lockaudit-Cache") != "miss" {
		t.Errorf("first request should miss cache")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Errorf("missing X-Request-Id")
	}
	env := decodeEnvelope(t, rec)
	if env.Encoding != decoder.UTF8SIG || env.Summary.Total != 3 || len(env.Findings) != 3 {
		t.Errorf("unexpected envelope: %+v", env)
	}

	rec2 := post(t, h, "/v1/inspect", []byte(testPolicy))
	if rec2.Header().Get("X-Lockaudit-Cache") != "hit" {
		t.Errorf("second request should hit cache")
	}
	if rec.Body.String() != rec2.Body.String() {
		t.Errorf("cached response differs")
	}

	metricsRec := httptest.NewRecorder()
	h.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metricsRec.Body.String()
	for _, want := range []string{
		"lockaudit_cache_hits_total 1",
		`lockaudit_inspections_total{result="success"} 1`,
		`lockaudit_findings_total{severity="High"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in metrics", want)
		}
	}
}

func TestInspectFilters(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	rec := post(t, s.Handler(), "/v1/inspect?severity=High&collection=Exe,Script", []byte(testPolicy))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Summary.Total != 2 || len(env.Findings) != 2 {
		t.Errorf("expected 2 High findings, got %+v", env)
	}
	for _, f := range env.Findings {
		if f["Severity"] != "High" {
			t.Errorf("filter leaked %s", f["Severity"])
		}
	}
}

func TestInspectCSV(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	rec := post(t, s.Handler(), "/v1/inspect?format=csv", []byte(testPolicy))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("content type = %s", rec.Header().Get("Content-Type"))
	}
	if lines := strings.Count(rec.Body.String(), "\n"); lines != 4 {
		t.Errorf("expected 4 CSV lines, got %d", lines)
	}
}

func TestInspectGzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(testPolicy))
	_ = zw.Close()

	s := newTestServer(t, DefaultConfig())
	rec := post(t, s.Handler(), "/v1/inspect", buf.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if decodeEnvelope(t, rec).Summary.Total != 3 {
		t.Errorf("gzip body not inspected")
	}
}

func TestInspectErrors(t *testing.T) {
	small := DefaultConfig()
	small.MaxBodyBytes = 64

	tests := []struct {
		name   string
		cfg    Config
		target string
		body   string
		status int
		kind   string
	}{
		{"malformed xml", DefaultConfig(), "/v1/inspect", "<AppLockerPolicy><RuleCollection>", http.StatusUnprocessableEntity, kindParseFailure},
		{"empty body", DefaultConfig(), "/v1/inspect", "  ", http.StatusBadRequest, kindBadRequest},
		{"bad format", DefaultConfig(), "/v1/inspect?format=xml", testPolicy, http.StatusBadRequest, kindBadRequest},
		{"bad severity", DefaultConfig(), "/v1/inspect?severity=critical", testPolicy, http.StatusBadRequest, kindBadRequest},
		{"too large", small, "/v1/inspect", testPolicy, http.StatusRequestEntityTooLarge, kindTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, tc.cfg)
			rec := post(t, s.Handler(), tc.target, []byte(tc.body))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
			var eb errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &eb); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if eb.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", eb.Kind, tc.kind)
			}
		})
	}
}

func TestInspectMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/inspect", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/inspect = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 1
	s := newTestServer(t, cfg)
	h := s.Handler()

	if rec := post(t, h, "/v1/inspect", []byte(testPolicy)); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := post(t, h, "/v1/inspect", []byte(testPolicy))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	h.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(metricsRec.Body.String(), "lockaudit_rate_limited_total 1") {
		t.Errorf("rate limit not counted:\n%s", metricsRec.Body.String())
	}
}

func TestRateLimit_ConcurrentFirstRequests(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 3
	s := newTestServer(t, cfg)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/inspect", nil)
			req.RemoteAddr = "192.0.2.20:4000"
			if s.allow(req) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != int32(cfg.RateBurst) {
		t.Errorf("allowed %d concurrent first requests, want burst %d", got, cfg.RateBurst)
	}
	if s.limiters.Len() != 1 {
		t.Errorf("tracked %d limiters for one client, want 1", s.limiters.Len())
	}
}

func TestLimiterFor_ReusesBucket(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	first := s.limiterFor("192.0.2.30")
	if again := s.limiterFor("192.0.2.30"); again != first {
		t.Error("second lookup built a new limiter")
	}
	if other := s.limiterFor("192.0.2.31"); other == first {
		t.Error("distinct clients share a limiter")
	}
}

func TestServeGracefulShutdown(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lockaudit/lockaudit/internal/models"
)

func TestCollectorCounts(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveInspection(ResultSuccess, 5*time.Millisecond)
	c.ObserveInspection(ResultSuccess, 7*time.Millisecond)
	c.ObserveInspection(ResultParseFailed, 0)
	c.AddFindings([]models.Finding{
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityLow},
	})
	c.CacheHit()
	c.RateLimited()
	c.RateLimited()

	if got := testutil.ToFloat64(c.inspections.WithLabelValues(ResultSuccess)); got != 2 {
		t.Errorf("success inspections = %v", got)
	}
	if got := testutil.ToFloat64(c.inspections.WithLabelValues(ResultParseFailed)); got != 1 {
		t.Errorf("parse failures = %v", got)
	}
	if got := testutil.ToFloat64(c.findings.WithLabelValues("High")); got != 2 {
		t.Errorf("high findings = %v", got)
	}
	if got := testutil.ToFloat64(c.cacheHits); got != 1 {
		t.Errorf("cache hits = %v", got)
	}
	if got := testutil.ToFloat64(c.rateLimited); got != 2 {
		t.Errorf("rate limited = %v", got)
	}
	if n := testutil.CollectAndCount(c.duration); n != 1 {
		t.Errorf("duration series = %d", n)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New(nil)
	c.ObserveInspection(ResultSuccess, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`lockaudit_inspections_total{result="success"} 1`,
		"lockaudit_inspect_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}

package inspector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lockaudit/lockaudit/internal/decoder"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/policyxml"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/text/encoding/unicode"
)

const auditPolicy = `<?xml version="1.0" encoding="utf-16"?>
<AppLockerPolicy Version="1">
  <RuleCollection Type="Exe" EnforcementMode="AuditOnly">
    <FilePathRule Id="1" Name="Downloads" UserOrGroupSid="S-1-1-0" Action="Allow">
      <Conditions><FilePathCondition Path="C:\Users\bob\Downloads\tool.exe" /></Conditions>
    </FilePathRule>
  </RuleCollection>
</AppLockerPolicy>`

func utf16LE(t *testing.T, s string) []byte {
	t.Helper()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestInspect_UTF16Export(t *testing.T) {
	res, err := New().Inspect(context.Background(), "policy.xml", utf16LE(t, auditPolicy))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if res.Encoding != decoder.UTF16 {
		t.Errorf("encoding = %q, want %q", res.Encoding, decoder.UTF16)
	}
	if len(res.SHA256) != 64 {
		t.Errorf("sha256 = %q", res.SHA256)
	}
	if len(res.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(res.Findings))
	}
	if res.Findings[0].RuleType != models.RuleTypeCollection || res.Findings[0].Severity != models.SeverityMedium {
		t.Errorf("first finding = %+v", res.Findings[0])
	}
	if res.Findings[1].Severity != models.SeverityHigh {
		t.Errorf("second finding severity = %s, want High", res.Findings[1].Severity)
	}
}

func TestInspect_DecodeFailure(t *testing.T) {
	d, err := decoder.New(decoder.UTF8, decoder.UTF16BE)
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(WithDecoder(d)).Inspect(context.Background(), "bad", []byte{0xff, 0xfe, 0x00})
	if !errors.Is(err, decoder.ErrDecodeFailure) {
		t.Fatalf("expected decode failure, got %v", err)
	}
}

func TestInspect_ParseFailure(t *testing.T) {
	_, err := New().Inspect(context.Background(), "bad", []byte("<AppLockerPolicy><RuleCollection>"))
	if !errors.Is(err, policyxml.ErrParseFailure) {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestInspect_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx := otelobs.WithHandle(context.Background(), otelobs.InitWithProvider(tp))

	if _, err := New().Inspect(ctx, "policy.xml", []byte(auditPolicy)); err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	want := []string{"lockaudit.decode", "lockaudit.parse", "lockaudit.assess", "lockaudit.inspect"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("spans = %v, want %v", names, want)
	}

	ended := recorder.Ended()
	root := ended[len(ended)-1]
	for _, child := range ended[:len(ended)-1] {
		if child.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Errorf("span %s is not a child of lockaudit.inspect", child.Name())
		}
	}
}

func TestInspect_LogsEvents(t *testing.T) {
	var buf bytes.Buffer
	ctx := observability.WithOpID(context.Background())
	ctx = logging.WithLogger(ctx, &captureLogger{buf: &buf})

	if _, err := New().Inspect(ctx, "policy.xml", []byte(auditPolicy)); err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected start and complete events, got %d lines", len(lines))
	}
	var complete map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &complete); err != nil {
		t.Fatal(err)
	}
	if complete["event"] != "inspect.complete" {
		t.Errorf("event = %v", complete["event"])
	}
	if complete["findings"] != float64(2) {
		t.Errorf("findings = %v, want 2", complete["findings"])
	}
}

// captureLogger records events as JSON lines
type captureLogger struct {
	buf *bytes.Buffer
}

func (c *captureLogger) Debug(string, string, ...any) {}
func (c *captureLogger) Info(string, string, ...any)  {}
func (c *captureLogger) Warn(string, string, ...any)  {}
func (c *captureLogger) Error(string, string, ...any) {}
func (c *captureLogger) Event(_ context.Context, event string, fields map[string]any) {
	entry := map[string]any{"event": event}
	for k, v := range fields {
		entry[k] = v
	}
	data, _ := json.Marshal(entry)
	c.buf.Write(append(data, '\n'))
}
func (c *captureLogger) WithComponent(string) logging.Logger { return c }
func (c *captureLogger) Close() error                        { return nil }

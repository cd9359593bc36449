package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lockaudit/lockaudit/internal/observability"
)

func readReceipt(t *testing.T, path string) Receipt {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}
	var parsed Receipt
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\nContent: %s", err, string(data))
	}
	return parsed
}

func TestWriterOverwrite_WritesValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")

	w, err := NewWriter(path, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "test-op-id-123",
		TsStart:       "2026-01-01T00:00:00Z",
		TsEnd:         "2026-01-01T00:01:00Z",
		Command:       "lockaudit inspect",
		Args:          []string{"--format", "csv", "policy.xml"},
		Result:        Result{Status: "success"},
	}
	if err := w.Write(r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	parsed := readReceipt(t, path)
	if parsed.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q, want %q", parsed.SchemaVersion, "1.0")
	}
	if parsed.OpID != "test-op-id-123" {
		t.Errorf("op_id = %q, want %q", parsed.OpID, "test-op-id-123")
	}
	if parsed.Result.Status != "success" {
		t.Errorf("result.status = %q, want %q", parsed.Result.Status, "success")
	}
}

func TestWriterAppend_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.jsonl")

	w, err := NewWriter(path, "append")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	for i, status := range []string{"success", "fail"} {
		r := Receipt{
			SchemaVersion: ReceiptSchemaVersion,
			OpID:          fmt.Sprintf("op-%d", i+1),
			Command:       "lockaudit inspect",
			Result:        Result{Status: status},
		}
		if err := w.Write(r); err != nil {
			t.Fatalf("Write %d failed: %v", i+1, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var parsed Receipt
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i+1, err)
		}
		if want := fmt.Sprintf("op-%d", i+1); parsed.OpID != want {
			t.Errorf("line %d op_id = %q, want %q", i+1, parsed.OpID, want)
		}
	}
}

func TestSessionFinish_RecordsSourceAndFindings(t *testing.T) {
	dir := t.TempDir()

	policyPath := filepath.Join(dir, "policy.xml")
	if err := os.WriteFile(policyPath, []byte(`<AppLockerPolicy Version="1"/>`), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	wantSHA, err := computeSHA256(policyPath)
	if err != nil {
		t.Fatalf("computeSHA256: %v", err)
	}

	receiptPath := filepath.Join(dir, "receipt.json")
	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := observability.WithOpID(context.Background())
	ctx = WithWriter(ctx, w)

	sess := Start(ctx, "lockaudit inspect", []string{policyPath})
	err = sess.Finish(nil,
		WithSource(policyPath, "", "utf-16"),
		WithFindings(FindingsSummary{High: 2, Medium: 1, Total: 3}),
		WithGate("strict", "fail", []RuleHit{{Name: "no_high_findings", Severity: "error"}}),
	)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	parsed := readReceipt(t, receiptPath)
	if parsed.OpID != observability.OpID(ctx) {
		t.Errorf("op_id = %q, want %q", parsed.OpID, observability.OpID(ctx))
	}
	if parsed.Source == nil {
		t.Fatal("source is nil")
	}
	if parsed.Source.SHA256 != wantSHA {
		t.Errorf("source.sha256 = %q, want %q", parsed.Source.SHA256, wantSHA)
	}
	if parsed.Source.Encoding != "utf-16" {
		t.Errorf("source.encoding = %q, want utf-16", parsed.Source.Encoding)
	}
	if parsed.Findings == nil || parsed.Findings.High != 2 || parsed.Findings.Total != 3 {
		t.Errorf("findings = %+v", parsed.Findings)
	}
	if parsed.Gate == nil || parsed.Gate.Status != "fail" || len(parsed.Gate.RulesHit) != 1 {
		t.Errorf("gate = %+v", parsed.Gate)
	}
}

func TestSessionFinish_SourceKeepsGivenDigest(t *testing.T) {
	receiptPath := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ctx := WithWriter(context.Background(), w)

	if err := Start(ctx, "lockaudit inspect", []string{"-"}).Finish(nil, WithSource("-", "abc123", "utf-8")); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	_ = w.Close()

	parsed := readReceipt(t, receiptPath)
	if parsed.Source == nil || parsed.Source.SHA256 != "abc123" {
		t.Errorf("source = %+v, want sha256 abc123", parsed.Source)
	}
}

func TestSessionFinish_NoWriterIsNoop(t *testing.T) {
	sess := Start(context.Background(), "lockaudit inspect", nil)
	if err := sess.Finish(fmt.Errorf("boom")); err != nil {
		t.Errorf("Finish without writer should be a no-op, got %v", err)
	}
}

func TestErrorTruncation(t *testing.T) {
	receiptPath := filepath.Join(t.TempDir(), "receipt.json")

	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx := observability.WithOpID(context.Background())
	ctx = WithWriter(ctx, w)

	longError := strings.Repeat("x", 5000)

	sess := Start(ctx, "lockaudit inspect", []string{"policy.xml"})
	if err := sess.Finish(fmt.Errorf("error: %s", longError)); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	parsed := readReceipt(t, receiptPath)
	if parsed.Result.Status != "fail" {
		t.Errorf("status = %q, want fail", parsed.Result.Status)
	}
	if len(parsed.Result.Error) > MaxErrorLength {
		t.Errorf("error length = %d, want <= %d", len(parsed.Result.Error), MaxErrorLength)
	}
	if len(parsed.Result.Error) < MaxErrorLength-10 {
		t.Errorf("error should be truncated to near MaxErrorLength, got %d", len(parsed.Result.Error))
	}
}

func TestContextWithWriter(t *testing.T) {
	ctx := context.Background()
	if w := From(ctx); w != nil {
		t.Error("From should return nil when no writer set")
	}

	path := filepath.Join(t.TempDir(), "receipt.json")
	writer, _ := NewWriter(path, "overwrite")
	ctx = WithWriter(ctx, writer)

	if w := From(ctx); w != writer {
		t.Error("From should return the writer stored in context")
	}
}

func TestWriterCreatesDirectories(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "a", "b", "c", "receipt.json")

	w, err := NewWriter(nestedPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter should create nested directories: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(filepath.Dir(nestedPath)); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeOverwrite, false},
		{"overwrite", ModeOverwrite, false},
		{"append", ModeAppend, false},
		{"rotate", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriterOverwrite_KeepsLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(path, "overwrite")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"first-run-with-a-longer-id", "second"} {
		if err := w.Write(Receipt{SchemaVersion: ReceiptSchemaVersion, OpID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if got := readReceipt(t, path).OpID; got != "second" {
		t.Errorf("op_id = %q, want second", got)
	}
}

func TestNewWriter_RejectsUnknownMode(t *testing.T) {
	if _, err := NewWriter(filepath.Join(t.TempDir(), "r.json"), "rotate"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

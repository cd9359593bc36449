package baseline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lockaudit/lockaudit/internal/models"
)

func fixedManager() *Manager {
	m := NewManager()
	m.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestBuildBaseline(t *testing.T) {
	m := fixedManager()
	findings := []models.Finding{
		pathFinding("Everyone", `C:\Temp\*`, models.SeverityHigh),
		pathFinding("Everyone", `%OSDRIVE%\*`, models.SeverityHigh),
	}

	b, err := m.Build(models.BaselineSource{Path: "policy.xml", SHA256: "abc"}, findings)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.BaselineVersion != models.BaselineVersion {
		t.Errorf("version = %q", b.BaselineVersion)
	}
	if b.CreatedAt != "2024-03-01T12:00:00Z" {
		t.Errorf("created_at = %q", b.CreatedAt)
	}
	if !strings.HasPrefix(b.Generator, "lockaudit ") {
		t.Errorf("generator = %q", b.Generator)
	}
	if len(b.Findings) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.Findings))
	}
	if b.Findings[1].Finding.Condition != `%OSDRIVE%\*` {
		t.Errorf("order not preserved")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := fixedManager()
	path := filepath.Join(t.TempDir(), DefaultPath)

	b, err := m.Build(models.BaselineSource{SHA256: "abc"}, []models.Finding{
		pathFinding("Everyone", `C:\Temp\*`, models.SeverityHigh),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := m.Save(b, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("baseline should end with newline")
	}
	if !m.Exists(path) {
		t.Errorf("Exists should report saved file")
	}

	loaded, err := m.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Findings[0].Fingerprint != b.Findings[0].Fingerprint {
		t.Errorf("fingerprint changed across round trip")
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")
	if err := os.WriteFile(path, []byte(`{"baseline_version":"9.0","findings":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewManager().Load(path)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestLoadFillsMissingFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")
	content := `{"baseline_version":"1.0","findings":[{"finding":{"Severity":"High","Collection":"Exe","RuleType":"FilePathRule","Principal":"Everyone","RuleName":"r","ConditionType":"Path","Condition":"C:\\Temp\\*"}}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := NewManager().Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(b.Findings[0].Fingerprint, FingerprintPrefix) {
		t.Errorf("fingerprint not recomputed: %q", b.Findings[0].Fingerprint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManager()
	missing := filepath.Join(t.TempDir(), "nope.json")
	if m.Exists(missing) {
		t.Error("Exists should be false")
	}
	if _, err := m.Load(missing); err == nil {
		t.Error("expected error")
	}
}

package policyxml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lockaudit/lockaudit/internal/models"
)

func loadSample(t *testing.T) *models.PolicyDocument {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "sample_policy.xml"))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	doc, err := Parse(string(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestParse_SamplePolicy(t *testing.T) {
	doc := loadSample(t)

	if doc.RootName != "AppLockerPolicy" {
		t.Errorf("RootName = %q", doc.RootName)
	}
	if doc.Version != "1" {
		t.Errorf("Version = %q", doc.Version)
	}

	wantTypes := []string{"Exe", "Script", "Dll", "Appx", "Msi"}
	gotTypes := doc.CollectionTypes()
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("CollectionTypes() = %v, want %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Errorf("collection[%d] = %q, want %q", i, gotTypes[i], wantTypes[i])
		}
	}

	if doc.RuleCount() != 6 {
		t.Errorf("RuleCount() = %d, want 6", doc.RuleCount())
	}

	if got := doc.Collections[3].EnforcementMode; got != "" {
		t.Errorf("absent EnforcementMode = %q, want empty", got)
	}
	if got := doc.Collections[4].IgnoredElements; got != 1 {
		t.Errorf("IgnoredElements = %d, want 1", got)
	}
}

func TestParse_RuleVariants(t *testing.T) {
	exe := loadSample(t).Collections[0]

	kinds := []models.RuleKind{models.RuleKindPath, models.RuleKindPath, models.RuleKindPublisher, models.RuleKindHash}
	if len(exe.Rules) != len(kinds) {
		t.Fatalf("got %d rules, want %d", len(exe.Rules), len(kinds))
	}
	for i, k := range kinds {
		if exe.Rules[i].Kind() != k {
			t.Errorf("rule[%d].Kind() = %s, want %s", i, exe.Rules[i].Kind(), k)
		}
	}

	share, ok := exe.Rules[1].(models.PathRule)
	if !ok {
		t.Fatalf("rule[1] is %T", exe.Rules[1])
	}
	if len(share.Paths) != 2 || share.Paths[0] != `\\fileserver\tools\bin\*` || share.Paths[1] != `C:\Tools\*` {
		t.Errorf("Paths = %v", share.Paths)
	}
	if share.Exceptions != 1 {
		t.Errorf("Exceptions = %d, want 1", share.Exceptions)
	}
	if share.Principal != "S-1-5-32-544" {
		t.Errorf("Principal = %q", share.Principal)
	}

	pub := exe.Rules[2].(models.PublisherRule)
	if len(pub.Conditions) != 1 {
		t.Fatalf("publisher conditions = %d", len(pub.Conditions))
	}
	pc := pub.Conditions[0]
	if pc.ProductName != "*" || pc.BinaryName != "*" || pc.LowSection != "1.0.0.0" || pc.HighSection != "*" {
		t.Errorf("publisher condition = %+v", pc)
	}

	hash := exe.Rules[3].(models.HashRule)
	if len(hash.Conditions) != 1 {
		t.Fatalf("hash conditions = %d", len(hash.Conditions))
	}
	hc := hash.Conditions[0]
	if !hc.Present || hc.Count != 2 || hc.Hash.Type != "SHA256" || hc.Hash.SourceFileName != "putty.exe" {
		t.Errorf("hash condition = %+v", hc)
	}
}

func TestParse_Defaults(t *testing.T) {
	text := `<AppLockerPolicy>
  <RuleCollection>
    <FilePathRule>
      <Conditions><FilePathCondition /></Conditions>
    </FilePathRule>
    <FileHashRule Name="no conditions" UserOrGroupSid="S-1-1-0" Action="Deny" />
    <FileHashRule Name="empty hash">
      <Conditions><FileHashCondition /></Conditions>
    </FileHashRule>
  </RuleCollection>
</AppLockerPolicy>`

	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rc := doc.Collections[0]
	if rc.Type != models.UnknownCollection {
		t.Errorf("Type = %q, want %q", rc.Type, models.UnknownCollection)
	}

	base := rc.Rules[0].Base()
	if base.Name != models.UnnamedRule || base.Action != models.UnknownAction || base.Principal != models.UnknownPrincipal {
		t.Errorf("defaults not applied: %+v", base)
	}
	if !base.HasConditions {
		t.Error("expected HasConditions")
	}
	if p := rc.Rules[0].(models.PathRule).Paths; len(p) != 1 || p[0] != "" {
		t.Errorf("Paths = %q", p)
	}

	noCond := rc.Rules[1].Base()
	if noCond.HasConditions {
		t.Error("rule without Conditions reported HasConditions")
	}
	if noCond.Action != "Deny" {
		t.Errorf("Action = %q", noCond.Action)
	}

	empty := rc.Rules[2].(models.HashRule).Conditions[0]
	if empty.Present || empty.Hash.Type != models.UnknownHashType {
		t.Errorf("empty hash condition = %+v", empty)
	}
}

func TestParse_PrincipalChildElement(t *testing.T) {
	text := `<AppLockerPolicy Version="1">
  <RuleCollection Type="Exe" EnforcementMode="Enabled">
    <FilePathRule Name="child principal" Action="Allow">
      <UserOrGroupSid> Everyone </UserOrGroupSid>
      <Conditions><FilePathCondition Path="C:\Apps\*" /></Conditions>
    </FilePathRule>
  </RuleCollection>
</AppLockerPolicy>`

	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := doc.Collections[0].Rules[0].Base().Principal; got != "Everyone" {
		t.Errorf("Principal = %q, want Everyone", got)
	}
}

func TestParse_StaleEncodingDeclarationAndBOM(t *testing.T) {
	text := "\ufeff<?xml version=\"1.0\" encoding=\"utf-16\"?>\n<AppLockerPolicy Version=\"1\" />"

	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Collections) != 0 {
		t.Errorf("expected no collections, got %d", len(doc.Collections))
	}
}

func TestParse_DuplicateCollectionsKept(t *testing.T) {
	text := `<AppLockerPolicy>
  <RuleCollection Type="Exe" EnforcementMode="Enabled" />
  <RuleCollection Type="Exe" EnforcementMode="AuditOnly" />
</AppLockerPolicy>`

	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Collections) != 2 {
		t.Fatalf("got %d collections, want 2", len(doc.Collections))
	}
	if doc.Collections[1].EnforcementMode != models.EnforcementAuditOnly {
		t.Errorf("second collection mode = %q", doc.Collections[1].EnforcementMode)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
	}{
		{"empty", "", 0},
		{"whitespace", "   \n  ", 0},
		{"unclosed", "<AppLockerPolicy>\n<RuleCollection Type=\"Exe\">\n</AppLockerPolicy>", 3},
		{"two roots", "<a/>\n<b/>", 2},
		{"bad attribute", "<AppLockerPolicy Version=1/>", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("expected parse failure")
			}
			if !errors.Is(err, ErrParseFailure) {
				t.Errorf("errors.Is(err, ErrParseFailure) = false for %v", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if tt.wantLine > 0 && pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", pe.Line, tt.wantLine, err)
			}
		})
	}
}

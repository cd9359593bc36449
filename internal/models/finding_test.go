package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"High", SeverityHigh, false},
		{"medium", SeverityMedium, false},
		{" LOW ", SeverityLow, false},
		{"info", SeverityInfo, false},
		{"critical", SeverityInfo, true},
		{"", SeverityInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeverity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSeverityOrdering(t *testing.T) {
	all := AllSeverities()
	for i := 1; i < len(all); i++ {
		if all[i-1] <= all[i] {
			t.Errorf("%s should rank above %s", all[i-1], all[i])
		}
	}
	if Severity(42).String() != "Unknown" {
		t.Error("out-of-range severity should render Unknown")
	}
}

func TestSeverityText(t *testing.T) {
	data, err := json.Marshal(map[string]Severity{"s": SeverityMedium})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"s":"Medium"}` {
		t.Errorf("marshal = %s", data)
	}

	var back map[string]Severity
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back["s"] != SeverityMedium {
		t.Errorf("unmarshal = %s", back["s"])
	}

	if _, err := Severity(-1).MarshalText(); err == nil {
		t.Error("expected error for invalid severity")
	}
}

func TestFinding_Render(t *testing.T) {
	tests := []struct {
		name    string
		reasons []string
		recs    []string
		wantRsn string
		wantRec string
	}{
		{
			name:    "single",
			reasons: []string{"User-writable path"},
			recs:    []string{"avoid user-writable paths; replace with Publisher/Hash rules"},
			wantRsn: "User-writable path.",
			wantRec: "avoid user-writable paths; replace with Publisher/Hash rules.",
		},
		{
			name:    "adjacent duplicate recommendations collapse",
			reasons: []string{"Principal is broad", "User-writable path"},
			recs:    []string{"note", "note"},
			wantRsn: "Principal is broad; User-writable path.",
			wantRec: "note.",
		},
		{
			name:    "non-adjacent duplicates kept",
			reasons: []string{"a", "b", "c"},
			recs:    []string{"x", "y", "x"},
			wantRsn: "a; b; c.",
			wantRec: "x; y; x.",
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Finding{Reasons: tt.reasons, Recommendations: tt.recs}
			if got := f.Reason(); got != tt.wantRsn {
				t.Errorf("Reason() = %q, want %q", got, tt.wantRsn)
			}
			if got := f.Recommendation(); got != tt.wantRec {
				t.Errorf("Recommendation() = %q, want %q", got, tt.wantRec)
			}
		})
	}
}

func TestRecord_FieldOrder(t *testing.T) {
	f := Finding{
		Severity:        SeverityLow,
		Collection:      "Exe",
		RuleType:        "FileHashRule",
		Action:          "Allow",
		Principal:       "Everyone",
		RuleName:        "putty",
		ConditionType:   ConditionTypeHash,
		Condition:       "SHA256: 0x5E7E7A4C1B3E9D...",
		Reasons:         []string{"r"},
		Recommendations: []string{"m"},
	}
	rec := f.Record()
	want := []string{"Low", "Exe", "FileHashRule", "Allow", "Everyone", "putty", "Hash", "SHA256: 0x5E7E7A4C1B3E9D...", "r.", "m."}
	if !reflect.DeepEqual(rec.Values(), want) {
		t.Errorf("Values() = %q, want %q", rec.Values(), want)
	}

	typ := reflect.TypeOf(rec)
	if typ.NumField() != len(RecordFields) {
		t.Fatalf("Record has %d fields, RecordFields has %d", typ.NumField(), len(RecordFields))
	}
	for i, name := range RecordFields {
		if got := typ.Field(i).Tag.Get("json"); got != name {
			t.Errorf("field %d json tag = %q, want %q", i, got, name)
		}
	}

	if got := Records([]Finding{f, f}); len(got) != 2 {
		t.Errorf("Records len = %d", len(got))
	}
}

func TestLookupCheck(t *testing.T) {
	seen := map[CheckID]bool{}
	for _, c := range Checks() {
		if seen[c.ID] {
			t.Errorf("duplicate check id %s", c.ID)
		}
		seen[c.ID] = true
		if got, ok := LookupCheck(c.ID); !ok || got.Name != c.Name {
			t.Errorf("LookupCheck(%s) = %+v, %v", c.ID, got, ok)
		}
	}
	if _, ok := LookupCheck("AL999"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestPolicyDocument_Counts(t *testing.T) {
	doc := &PolicyDocument{Collections: []RuleCollection{
		{Type: "Exe", Rules: []Rule{PathRule{}, HashRule{}}},
		{Type: "Exe", Rules: []Rule{PublisherRule{}}},
	}}
	if doc.RuleCount() != 3 {
		t.Errorf("RuleCount = %d, want 3", doc.RuleCount())
	}
	if !reflect.DeepEqual(doc.CollectionTypes(), []string{"Exe", "Exe"}) {
		t.Errorf("CollectionTypes = %v", doc.CollectionTypes())
	}
}

func TestGateRule_EffectiveSeverity(t *testing.T) {
	if (GateRule{}).EffectiveSeverity() != GateSeverityError {
		t.Error("default severity should be error")
	}
	if (GateRule{Severity: GateSeverityWarn}).EffectiveSeverity() != GateSeverityWarn {
		t.Error("warn should stay warn")
	}
}

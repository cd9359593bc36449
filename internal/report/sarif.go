package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/lockaudit/lockaudit/internal/baseline"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/version"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"

	// sarifFingerprintKey names our partialFingerprints entry
	sarifFingerprintKey = "lockauditFinding/v1"

	defaultArtifactURI = "policy.xml"
)

// sarifNamespace seeds run GUIDs so the same policy always yields the same id
var sarifNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/lockaudit/lockaudit/sarif"))

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema,omitempty"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool               `json:"tool"`
	AutomationDetails *sarifAutomationDetails `json:"automationDetails,omitempty"`
	Artifacts         []sarifArtifact         `json:"artifacts,omitempty"`
	Results           []sarifResult           `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	Rules           []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name,omitempty"`
	ShortDescription     *sarifMessage    `json:"shortDescription,omitempty"`
	DefaultConfiguration *sarifRuleConfig `json:"defaultConfiguration,omitempty"`
	Properties           map[string]any   `json:"properties,omitempty"`
}

type sarifRuleConfig struct {
	Level string `json:"level,omitempty"`
}

type sarifAutomationDetails struct {
	ID   string `json:"id,omitempty"`
	GUID string `json:"guid,omitempty"`
}

type sarifArtifact struct {
	Location sarifArtifactLocation `json:"location"`
	Hashes   map[string]string     `json:"hashes,omitempty"`
	Encoding string                `json:"encoding,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation *sarifArtifactLocation `json:"artifactLocation,omitempty"`
}

type sarifArtifactLocation struct {
	URI   string `json:"uri"`
	Index int    `json:"index"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// sarifLevel maps severity onto the three SARIF levels
func sarifLevel(s models.Severity) string {
	switch s {
	case models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// sarifRuleID for a finding. Findings without a primary check are filed
// under the collection or broad-principal checks by rule type.
func sarifRuleID(f models.Finding) models.CheckID {
	if f.Check != "" {
		return f.Check
	}
	if len(f.Checks) > 0 {
		return f.Checks[0]
	}
	if f.RuleType == models.RuleTypeCollection {
		return models.CheckCollectionNotConfigured
	}
	return models.CheckBroadPrincipal
}

// WriteSARIF renders the findings as a SARIF 2.1.0 log with one rule per check
func WriteSARIF(w io.Writer, doc Document) error {
	log, err := buildSARIF(doc)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(log)
}

func buildSARIF(doc Document) (*sarifLog, error) {
	checks := models.Checks()
	rules := make([]sarifRule, len(checks))
	ruleIndex := make(map[models.CheckID]int, len(checks))
	for i, c := range checks {
		rules[i] = sarifRule{
			ID:                   string(c.ID),
			Name:                 c.Name,
			ShortDescription:     &sarifMessage{Text: c.Description},
			DefaultConfiguration: &sarifRuleConfig{Level: sarifLevel(c.Severity)},
			Properties:           map[string]any{"severity": c.Severity.String()},
		}
		ruleIndex[c.ID] = i
	}

	uri := doc.Source
	if uri == "" || uri == "-" {
		uri = defaultArtifactURI
	}

	fps, err := baseline.Fingerprints(doc.Findings)
	if err != nil {
		return nil, err
	}

	results := make([]sarifResult, 0, len(doc.Findings))
	for i, f := range doc.Findings {
		id := sarifRuleID(f)
		results = append(results, sarifResult{
			RuleID:    string(id),
			RuleIndex: ruleIndex[id],
			Level:     sarifLevel(f.Severity),
			Message:   sarifMessage{Text: sarifMessageText(f)},
			Locations: []sarifLocation{{
				PhysicalLocation: &sarifPhysicalLocation{
					ArtifactLocation: &sarifArtifactLocation{URI: uri},
				},
				LogicalLocations: []sarifLogicalLocation{{
					Name:               f.RuleName,
					FullyQualifiedName: f.Collection + "/" + f.RuleName,
					Kind:               "rule",
				}},
			}},
			PartialFingerprints: map[string]string{sarifFingerprintKey: fps[i]},
			Properties:          sarifProperties(f),
		})
	}

	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:            "lockaudit",
			Version:         version.BuildVersion(),
			SemanticVersion: version.BuildVersion(),
			InformationURI:  "https://github.com/lockaudit/lockaudit",
			Rules:           rules,
		}},
		Artifacts: []sarifArtifact{{
			Location: sarifArtifactLocation{URI: uri},
			Encoding: doc.Encoding,
		}},
		Results: results,
	}
	if doc.SHA256 != "" {
		run.Artifacts[0].Hashes = map[string]string{"sha-256": doc.SHA256}
		run.AutomationDetails = &sarifAutomationDetails{
			ID:   "lockaudit/" + doc.SHA256,
			GUID: uuid.NewSHA1(sarifNamespace, []byte(doc.SHA256)).String(),
		}
	}

	return &sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs:    []sarifRun{run},
	}, nil
}

func sarifMessageText(f models.Finding) string {
	msg := fmt.Sprintf("%s %s rule %q", f.Collection, f.RuleType, f.RuleName)
	if f.RuleType == models.RuleTypeCollection {
		msg = fmt.Sprintf("%s rule collection", f.Collection)
	}
	if r := f.Reason(); r != "" {
		msg += ": " + r
	}
	if rec := f.Recommendation(); rec != "" {
		msg += " Recommendation: " + rec
	}
	return msg
}

func sarifProperties(f models.Finding) map[string]any {
	checks := make([]string, len(f.Checks))
	for i, c := range f.Checks {
		checks[i] = string(c)
	}
	return map[string]any{
		"severity":      f.Severity.String(),
		"collection":    f.Collection,
		"ruleType":      f.RuleType,
		"action":        f.Action,
		"principal":     f.Principal,
		"conditionType": f.ConditionType,
		"condition":     f.Condition,
		"checks":        checks,
	}
}

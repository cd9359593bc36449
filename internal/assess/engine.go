// Package assess is the AppLocker risk assessment engine. It walks a parsed
// policy and emits findings from a catalog of independent checks. Assessment
// is pure: the input tree is never modified and identical input yields an
// identical, identically ordered finding list.
package assess

import (
	"fmt"

	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/policyxml"
)

// hashDisplayLen is how much of a hash value is shown
const hashDisplayLen = 16

// Engine runs the check catalog
type Engine struct {
	catalog *Catalog
}

// Option configures an Engine
type Option func(*Engine)

// WithCatalog replaces the classification tables
func WithCatalog(c *Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// NewEngine returns an Engine over DefaultCatalog unless WithCatalog overrides it
func NewEngine(opts ...Option) *Engine {
	e := &Engine{catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Assess parses text and assesses it with the default catalog
func Assess(text string) ([]models.Finding, error) {
	_, findings, err := defaultEngine.AssessText(text)
	return findings, err
}

// AssessText parses and assesses; a *policyxml.ParseError is returned for
// malformed markup.
func (e *Engine) AssessText(text string) (*models.PolicyDocument, []models.Finding, error) {
	doc, err := policyxml.Parse(text)
	if err != nil {
		return nil, nil, err
	}
	return doc, e.AssessDocument(doc), nil
}

// AssessDocument returns collection-level findings for every collection
// first, then rule-level findings in document order.
func (e *Engine) AssessDocument(doc *models.PolicyDocument) []models.Finding {
	findings := []models.Finding{}
	if doc == nil {
		return findings
	}

	for _, rc := range doc.Collections {
		if f, ok := assessCollection(rc); ok {
			findings = append(findings, f)
		}
	}

	for _, rc := range doc.Collections {
		for _, rule := range rc.Rules {
			findings = append(findings, e.assessRule(rc.Type, rule)...)
		}
	}

	return findings
}

func assessCollection(rc models.RuleCollection) (models.Finding, bool) {
	s, ok := checkCollection(rc)
	if !ok {
		return models.Finding{}, false
	}
	return models.Finding{
		Severity:        s.floor,
		Collection:      rc.Type,
		RuleType:        models.RuleTypeCollection,
		Action:          models.NotApplicableValue,
		Principal:       models.NotApplicableValue,
		RuleName:        models.NotApplicableValue,
		ConditionType:   models.ConditionTypeNone,
		Condition:       models.NotApplicableValue,
		Reasons:         []string{s.reason},
		Recommendations: []string{s.recommendation},
		Checks:          []models.CheckID{s.check},
		Check:           s.check,
	}, true
}

func (e *Engine) assessRule(collection string, rule models.Rule) []models.Finding {
	switch r := rule.(type) {
	case models.PathRule:
		return e.assessPathRule(collection, r)
	case models.PublisherRule:
		return e.assessPublisherRule(collection, r)
	case models.HashRule:
		return e.assessHashRule(collection, r)
	default:
		return nil
	}
}

func newFinding(collection string, base models.RuleBase, kind models.RuleKind, condType, condition string, v *verdict) models.Finding {
	return models.Finding{
		Severity:        v.severity,
		Collection:      collection,
		RuleType:        string(kind),
		Action:          base.Action,
		Principal:       base.Principal,
		RuleName:        base.Name,
		ConditionType:   condType,
		Condition:       condition,
		Reasons:         v.reasons,
		Recommendations: v.recommendations,
		Checks:          v.checks,
		Check:           v.primary,
	}
}

// assessPathRule yields one finding per path condition that trips a check
func (e *Engine) assessPathRule(collection string, r models.PathRule) []models.Finding {
	var out []models.Finding
	for _, path := range r.Paths {
		v := newVerdict()
		for _, check := range pathChecks {
			if s, ok := check(e.catalog, r.Principal, path); ok {
				v.apply(s)
			}
		}
		if e.catalog.IsProtected(path) {
			v.clampProtected()
		}
		if v.fired() {
			out = append(out, newFinding(collection, r.RuleBase, r.Kind(), models.ConditionTypePath, path, v))
		}
	}
	return out
}

func (e *Engine) assessPublisherRule(collection string, r models.PublisherRule) []models.Finding {
	var out []models.Finding
	for _, pc := range r.Conditions {
		v := newVerdict()
		for _, check := range publisherChecks {
			if s, ok := check(e.catalog, r.Principal, pc); ok {
				v.apply(s)
			}
		}
		if v.fired() {
			out = append(out, newFinding(collection, r.RuleBase, r.Kind(), models.ConditionTypePublisher, renderPublisher(pc), v))
		}
	}
	return out
}

// assessHashRule flags only broad principals; hash pinning itself is tight
func (e *Engine) assessHashRule(collection string, r models.HashRule) []models.Finding {
	if !e.catalog.IsBroadPrincipal(r.Principal) {
		return nil
	}
	var out []models.Finding
	for _, hc := range r.Conditions {
		v := newVerdict()
		v.apply(signal{check: models.CheckHashBroadPrincipal, reason: reasonHashBroad, recommendation: recHashBroad, floor: models.SeverityLow})
		out = append(out, newFinding(collection, r.RuleBase, r.Kind(), models.ConditionTypeHash, renderHash(hc), v))
	}
	return out
}

func renderPublisher(pc models.PublisherCondition) string {
	return fmt.Sprintf("Publisher='%s'; Product='%s'; Binary='%s'; VersionRange=[%s, %s]",
		pc.PublisherName, pc.ProductName, pc.BinaryName, pc.LowSection, pc.HighSection)
}

func renderHash(hc models.HashCondition) string {
	data := []rune(hc.Hash.Data)
	if len(data) > hashDisplayLen {
		data = data[:hashDisplayLen]
	}
	return fmt.Sprintf("%s: %s...", hc.Hash.Type, string(data))
}

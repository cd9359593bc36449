// Package policyxml parses AppLocker policy XML into the models tree.
// It does not validate AppLocker semantics; absent attributes surface as
// sentinel values.
package policyxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lockaudit/lockaudit/internal/models"
)

// Element and attribute names
const (
	elemRuleCollection  = "RuleCollection"
	elemConditions      = "Conditions"
	elemExceptions      = "Exceptions"
	elemPathCondition   = "FilePathCondition"
	elemPublisherCond   = "FilePublisherCondition"
	elemVersionRange    = "BinaryVersionRange"
	elemHashCondition   = "FileHashCondition"
	elemFileHash        = "FileHash"
	attrPrincipal       = "UserOrGroupSid"
	attrEnforcementMode = "EnforcementMode"
	attrCollectionType  = "Type"
	attrPolicyVersion   = "Version"
)

// ErrParseFailure is matched by every error returned from Parse
var ErrParseFailure = errors.New("parse failure")

// ParseError carries the position of malformed markup
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid XML at line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return "invalid XML: " + e.Msg
}

func (e *ParseError) Unwrap() error { return ErrParseFailure }

// element is a minimal ordered tree node
type element struct {
	name     string
	attrs    map[string]string
	children []*element
	text     strings.Builder
}

func (e *element) attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// attrOr returns def only when the attribute is absent
func (e *element) attrOr(name, def string) string {
	if v, ok := e.attrs[name]; ok {
		return v
	}
	return def
}

func (e *element) child(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Parse decoded policy text into a document tree
func Parse(text string) (*models.PolicyDocument, error) {
	root, err := parseTree(text)
	if err != nil {
		return nil, err
	}
	return buildDocument(root), nil
}

func parseTree(text string) (*element, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = true
	// The text is already decoded; a stale encoding declaration must not
	// trigger another conversion.
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var root *element
	var stack []*element
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, positionedError(d, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, positionedError(d, errors.New("junk after document element"))
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if strings.TrimSpace(string(t)) != "" {
				return nil, positionedError(d, errors.New("text outside document element"))
			}
		}
	}

	if root == nil {
		return nil, &ParseError{Msg: "no element found"}
	}
	return root, nil
}

func positionedError(d *xml.Decoder, err error) *ParseError {
	line, col := d.InputPos()
	msg := err.Error()
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		line = se.Line
		msg = se.Msg
	}
	return &ParseError{Line: line, Column: col, Msg: msg}
}

func buildDocument(root *element) *models.PolicyDocument {
	doc := &models.PolicyDocument{
		RootName: root.name,
		Version:  root.attrOr(attrPolicyVersion, ""),
	}
	for _, c := range root.children {
		if c.name != elemRuleCollection {
			continue
		}
		doc.Collections = append(doc.Collections, buildCollection(c))
	}
	return doc
}

func buildCollection(el *element) models.RuleCollection {
	rc := models.RuleCollection{
		Type:            el.attrOr(attrCollectionType, models.UnknownCollection),
		EnforcementMode: models.EnforcementMode(el.attrOr(attrEnforcementMode, "")),
	}
	for _, c := range el.children {
		switch models.RuleKind(c.name) {
		case models.RuleKindPath:
			rc.Rules = append(rc.Rules, buildPathRule(c))
		case models.RuleKindPublisher:
			rc.Rules = append(rc.Rules, buildPublisherRule(c))
		case models.RuleKindHash:
			rc.Rules = append(rc.Rules, buildHashRule(c))
		default:
			rc.IgnoredElements++
		}
	}
	return rc
}

func buildBase(el *element) models.RuleBase {
	return models.RuleBase{
		ID:            el.attrOr("Id", ""),
		Name:          el.attrOr("Name", models.UnnamedRule),
		Description:   el.attrOr("Description", ""),
		Action:        el.attrOr("Action", models.UnknownAction),
		Principal:     principalOf(el),
		HasConditions: el.child(elemConditions) != nil,
	}
}

// principalOf reads the UserOrGroupSid attribute, then a child element of the
// same name, then falls back to the Unknown sentinel.
func principalOf(el *element) string {
	if v, ok := el.attr(attrPrincipal); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if c := el.child(attrPrincipal); c != nil {
		if v := strings.TrimSpace(c.text.String()); v != "" {
			return v
		}
	}
	return models.UnknownPrincipal
}

func conditionsOf(el *element, name string) []*element {
	conds := el.child(elemConditions)
	if conds == nil {
		return nil
	}
	var out []*element
	for _, c := range conds.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func buildPathRule(el *element) models.PathRule {
	r := models.PathRule{RuleBase: buildBase(el)}
	for _, c := range conditionsOf(el, elemPathCondition) {
		r.Paths = append(r.Paths, c.attrOr("Path", ""))
	}
	if ex := el.child(elemExceptions); ex != nil {
		r.Exceptions = len(ex.children)
	}
	return r
}

func buildPublisherRule(el *element) models.PublisherRule {
	r := models.PublisherRule{RuleBase: buildBase(el)}
	for _, c := range conditionsOf(el, elemPublisherCond) {
		pc := models.PublisherCondition{
			PublisherName: c.attrOr("PublisherName", ""),
			ProductName:   c.attrOr("ProductName", ""),
			BinaryName:    c.attrOr("BinaryName", ""),
		}
		if vr := c.child(elemVersionRange); vr != nil {
			pc.LowSection = vr.attrOr("LowSection", "")
			pc.HighSection = vr.attrOr("HighSection", "")
		}
		r.Conditions = append(r.Conditions, pc)
	}
	return r
}

func buildHashRule(el *element) models.HashRule {
	r := models.HashRule{RuleBase: buildBase(el)}
	for _, c := range conditionsOf(el, elemHashCondition) {
		hc := models.HashCondition{Hash: models.FileHash{Type: models.UnknownHashType}}
		for _, h := range c.children {
			if h.name != elemFileHash {
				continue
			}
			if hc.Count == 0 {
				hc.Present = true
				hc.Hash = models.FileHash{
					Type:             h.attrOr("Type", models.UnknownHashType),
					Data:             h.attrOr("Data", ""),
					SourceFileName:   h.attrOr("SourceFileName", ""),
					SourceFileLength: h.attrOr("SourceFileLength", ""),
				}
			}
			hc.Count++
		}
		r.Conditions = append(r.Conditions, hc)
	}
	return r
}

package models

// Sentinel values for absent attributes
const (
	UnknownPrincipal   = "Unknown"
	UnnamedRule        = "Unnamed Rule"
	UnknownAction      = "Unknown"
	UnknownCollection  = "Unknown"
	UnknownHashType    = "Unknown"
	WildcardValue      = "*"
	NotApplicableValue = "n/a"
)

// EnforcementMode of a rule collection
type EnforcementMode string

const (
	EnforcementNotConfigured EnforcementMode = "NotConfigured"
	EnforcementAuditOnly     EnforcementMode = "AuditOnly"
	EnforcementEnabled       EnforcementMode = "Enabled"
)

// Well-known collection types
const (
	CollectionExe    = "Exe"
	CollectionMsi    = "Msi"
	CollectionScript = "Script"
	CollectionDll    = "Dll"
	CollectionAppx   = "Appx"
)

// RuleKind discriminates the rule variants
type RuleKind string

const (
	RuleKindPath      RuleKind = "FilePathRule"
	RuleKindPublisher RuleKind = "FilePublisherRule"
	RuleKindHash      RuleKind = "FileHashRule"
)

// PolicyDocument is a parsed AppLocker policy
type PolicyDocument struct {
	RootName    string
	Version     string
	Collections []RuleCollection
}

// RuleCollection holds the rules for one file-type category.
// EnforcementMode keeps the literal attribute value; empty means absent.
type RuleCollection struct {
	Type            string
	EnforcementMode EnforcementMode
	Rules           []Rule
	// IgnoredElements counts children that are not path/publisher/hash rules.
	IgnoredElements int
}

// Rule is one of PathRule, PublisherRule or HashRule.
type Rule interface {
	Kind() RuleKind
	Base() RuleBase
}

// RuleBase attributes shared by every rule kind
type RuleBase struct {
	ID          string
	Name        string
	Description string
	Action      string
	Principal   string
	// HasConditions is false when the rule carries no Conditions element.
	HasConditions bool
}

// PathRule allows or denies by file path
type PathRule struct {
	RuleBase
	Paths      []string
	Exceptions int
}

func (r PathRule) Kind() RuleKind { return RuleKindPath }
func (r PathRule) Base() RuleBase { return r.RuleBase }

// PublisherCondition from a FilePublisherCondition element
type PublisherCondition struct {
	PublisherName string
	ProductName   string
	BinaryName    string
	LowSection    string
	HighSection   string
}

// PublisherRule allows or denies by signer
type PublisherRule struct {
	RuleBase
	Conditions []PublisherCondition
}

func (r PublisherRule) Kind() RuleKind { return RuleKindPublisher }
func (r PublisherRule) Base() RuleBase { return r.RuleBase }

// FileHash entry of a FileHashCondition
type FileHash struct {
	Type             string
	Data             string
	SourceFileName   string
	SourceFileLength string
}

// HashCondition holds the first FileHash of a FileHashCondition.
// Present is false when the condition had no FileHash child.
type HashCondition struct {
	Hash    FileHash
	Present bool
	Count   int
}

// HashRule allows or denies by file hash
type HashRule struct {
	RuleBase
	Conditions []HashCondition
}

func (r HashRule) Kind() RuleKind { return RuleKindHash }
func (r HashRule) Base() RuleBase { return r.RuleBase }

// RuleCount across all collections
func (d *PolicyDocument) RuleCount() int {
	n := 0
	for _, c := range d.Collections {
		n += len(c.Rules)
	}
	return n
}

// CollectionTypes in document order, duplicates kept
func (d *PolicyDocument) CollectionTypes() []string {
	types := make([]string, 0, len(d.Collections))
	for _, c := range d.Collections {
		types = append(types, c.Type)
	}
	return types
}

package models

// CheckID identifies the check that produced a reason
type CheckID string

const (
	CheckCollectionNotConfigured   CheckID = "AL001"
	CheckCollectionAuditOnly       CheckID = "AL002"
	CheckCollectionUnknownMode     CheckID = "AL003"
	CheckBroadPrincipal            CheckID = "AL101"
	CheckUserWritablePath          CheckID = "AL102"
	CheckWildcardPattern           CheckID = "AL103"
	CheckDriveRoot                 CheckID = "AL104"
	CheckPublisherAnyProductBinary CheckID = "AL201"
	CheckPublisherAnyProduct       CheckID = "AL202"
	CheckPublisherAnyBinary        CheckID = "AL203"
	CheckPublisherNoUpperVersion   CheckID = "AL204"
	CheckHashBroadPrincipal        CheckID = "AL301"
)

// CheckInfo describes a check for rule catalogs (SARIF, gate explain)
type CheckInfo struct {
	ID          CheckID
	Name        string
	Description string
	// Severity is the floor the check contributes
	Severity Severity
}

var checkCatalog = []CheckInfo{
	{CheckCollectionNotConfigured, "collection-not-configured", "Rule collection is NotConfigured, so the file type is allowed by default", SeverityHigh},
	{CheckCollectionAuditOnly, "collection-audit-only", "Rule collection only audits and does not block", SeverityMedium},
	{CheckCollectionUnknownMode, "collection-unrecognized-mode", "Rule collection has an EnforcementMode value AppLocker does not define", SeverityHigh},
	{CheckBroadPrincipal, "broad-principal", "Rule applies to a very large population such as Everyone or Users", SeverityInfo},
	{CheckUserWritablePath, "user-writable-path", "Path rule allows a location ordinary users can write to", SeverityHigh},
	{CheckWildcardPattern, "wildcard-pattern", "Path rule allows an executable type by wildcard", SeverityMedium},
	{CheckDriveRoot, "drive-root", "Path rule allows an entire drive", SeverityHigh},
	{CheckPublisherAnyProductBinary, "publisher-any-product-and-binary", "Publisher rule allows every product and binary from the signer", SeverityMedium},
	{CheckPublisherAnyProduct, "publisher-any-product", "Publisher rule allows every product from the signer", SeverityMedium},
	{CheckPublisherAnyBinary, "publisher-any-binary", "Publisher rule allows every binary of the product", SeverityMedium},
	{CheckPublisherNoUpperVersion, "publisher-no-upper-version", "Publisher rule has no upper version bound", SeverityMedium},
	{CheckHashBroadPrincipal, "hash-broad-principal", "Hash rule is tight but granted to a broad principal", SeverityLow},
}

// Checks lists every check in ID order
func Checks() []CheckInfo {
	return append([]CheckInfo(nil), checkCatalog...)
}

// LookupCheck returns the catalog entry for id
func LookupCheck(id CheckID) (CheckInfo, bool) {
	for _, c := range checkCatalog {
		if c.ID == id {
			return c, true
		}
	}
	return CheckInfo{}, false
}

package assess

import (
	"fmt"
	"strings"

	"github.com/lockaudit/lockaudit/internal/models"
)

// pathCheck evaluates one path condition of a rule
type pathCheck func(c *Catalog, principal, path string) (signal, bool)

// pathChecks run in this order; the order fixes reason order
var pathChecks = []pathCheck{
	checkPathPrincipal,
	checkUserWritable,
	checkWildcard,
	checkDriveRoot,
}

func checkPathPrincipal(c *Catalog, principal, _ string) (signal, bool) {
	if !c.IsBroadPrincipal(principal) {
		return signal{}, false
	}
	return signal{check: models.CheckBroadPrincipal, reason: reasonBroadPrincipal, recommendation: recBroadPrincipal}, true
}

func checkUserWritable(c *Catalog, _, path string) (signal, bool) {
	if !c.IsUserWritable(path) {
		return signal{}, false
	}
	return signal{check: models.CheckUserWritablePath, reason: reasonUserWritable, recommendation: recUserWritable, floor: models.SeverityHigh}, true
}

func checkWildcard(c *Catalog, _, path string) (signal, bool) {
	if !c.HasDangerousWildcard(path) {
		return signal{}, false
	}
	return signal{
		check:          models.CheckWildcardPattern,
		reason:         fmt.Sprintf(reasonWildcardFmt, lastSegment(path)),
		recommendation: recWildcard,
		floor:          models.SeverityMedium,
	}, true
}

func checkDriveRoot(c *Catalog, _, path string) (signal, bool) {
	if !c.IsDriveRoot(path) {
		return signal{}, false
	}
	return signal{check: models.CheckDriveRoot, reason: reasonDriveRoot, recommendation: recDriveRoot, floor: models.SeverityHigh}, true
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, `\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// publisherCheck evaluates a publisher condition
type publisherCheck func(c *Catalog, principal string, pc models.PublisherCondition) (signal, bool)

var publisherChecks = []publisherCheck{
	checkAnyProductAndBinary,
	checkAnyProduct,
	checkAnyBinary,
	checkNoUpperVersion,
	checkPublisherPrincipal,
}

func checkAnyProductAndBinary(_ *Catalog, _ string, pc models.PublisherCondition) (signal, bool) {
	if pc.ProductName != models.WildcardValue || pc.BinaryName != models.WildcardValue {
		return signal{}, false
	}
	return signal{check: models.CheckPublisherAnyProductBinary, reason: reasonAnyProductAndBinary, recommendation: recAnyProductAndBinary, floor: models.SeverityMedium}, true
}

func checkAnyProduct(_ *Catalog, _ string, pc models.PublisherCondition) (signal, bool) {
	if pc.ProductName != models.WildcardValue {
		return signal{}, false
	}
	return signal{check: models.CheckPublisherAnyProduct, reason: reasonAnyProduct, recommendation: recAnyProduct, floor: models.SeverityMedium}, true
}

func checkAnyBinary(_ *Catalog, _ string, pc models.PublisherCondition) (signal, bool) {
	if pc.BinaryName != models.WildcardValue {
		return signal{}, false
	}
	return signal{check: models.CheckPublisherAnyBinary, reason: reasonAnyBinary, recommendation: recAnyBinary, floor: models.SeverityMedium}, true
}

func checkNoUpperVersion(_ *Catalog, _ string, pc models.PublisherCondition) (signal, bool) {
	if pc.HighSection != "" && pc.HighSection != models.WildcardValue {
		return signal{}, false
	}
	return signal{check: models.CheckPublisherNoUpperVersion, reason: reasonNoUpperVersion, recommendation: recNoUpperVersion, floor: models.SeverityMedium}, true
}

func checkPublisherPrincipal(c *Catalog, principal string, _ models.PublisherCondition) (signal, bool) {
	if !c.IsBroadPrincipal(principal) {
		return signal{}, false
	}
	return signal{check: models.CheckBroadPrincipal, reason: reasonBroadPrincipal, recommendation: recBroadPrincipal}, true
}

// checkCollection returns at most one signal for the enforcement mode.
// Absent, empty and unrecognized modes get NotConfigured semantics.
func checkCollection(rc models.RuleCollection) (signal, bool) {
	switch rc.EnforcementMode {
	case models.EnforcementEnabled:
		return signal{}, false
	case models.EnforcementAuditOnly:
		return signal{
			check:          models.CheckCollectionAuditOnly,
			reason:         fmt.Sprintf(reasonAuditOnlyFmt, rc.Type),
			recommendation: fmt.Sprintf(recAuditOnlyFmt, rc.Type),
			floor:          models.SeverityMedium,
		}, true
	case models.EnforcementNotConfigured, "":
		return signal{
			check:          models.CheckCollectionNotConfigured,
			reason:         fmt.Sprintf(reasonNotConfiguredFmt, rc.Type),
			recommendation: fmt.Sprintf(recNotConfiguredFmt, rc.Type),
			floor:          models.SeverityHigh,
		}, true
	default:
		return signal{
			check:          models.CheckCollectionUnknownMode,
			reason:         fmt.Sprintf(reasonUnrecognizedModeFmt, rc.Type, rc.EnforcementMode),
			recommendation: fmt.Sprintf(recNotConfiguredFmt, rc.Type),
			floor:          models.SeverityHigh,
		}, true
	}
}

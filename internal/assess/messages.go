package assess

// Reason and recommendation texts
const (
	reasonBroadPrincipal = "Principal is broad"
	recBroadPrincipal    = "reduce principal scope"

	reasonUserWritable = "User-writable path"
	recUserWritable    = "avoid user-writable paths; replace with Publisher/Hash rules"

	reasonWildcardFmt = "Wildcard extension pattern (%s)"
	recWildcard       = "avoid wildcard allows on executable types"

	reasonDriveRoot = "Drive root access"
	recDriveRoot    = "specify exact paths instead of drive roots"

	recProtectedPath = "No change needed if file remains locked down; consider Publisher/Hash for defense-in-depth"

	reasonAnyProductAndBinary = "Any product and any binary from the publisher are allowed"
	recAnyProductAndBinary    = "constrain to specific Product/Binary"

	reasonAnyProduct = "Any product from publisher allowed"
	recAnyProduct    = "specify exact product name"

	reasonAnyBinary = "Any binary from publisher/product allowed"
	recAnyBinary    = "specify exact binary name"

	reasonNoUpperVersion = "No upper version bound"
	recNoUpperVersion    = "set an upper version bound"

	reasonHashBroad = "Allow-by-hash given to broad principals (rule is tight, group is broad)"
	recHashBroad    = "Consider reducing principal scope for defense-in-depth"

	reasonNotConfiguredFmt = "Collection '%s' is NotConfigured → default-allow for this type"
	recNotConfiguredFmt    = "Set EnforcementMode=Enabled for %s (or AuditOnly during pilot)"

	reasonUnrecognizedModeFmt = "Collection '%s' has unrecognized EnforcementMode '%s' → treated as NotConfigured (default-allow)"

	reasonAuditOnlyFmt = "Collection '%s' is in AuditOnly mode → not enforcing blocks"
	recAuditOnlyFmt    = "Consider setting EnforcementMode=Enabled for %s after testing"
)

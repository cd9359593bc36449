package assess

import (
	"regexp"
	"strings"
)

// PathPattern classifies a lower-cased path
type PathPattern struct {
	Label string
	Match func(lowerPath string) bool
}

func regexPattern(label, expr string) PathPattern {
	re := regexp.MustCompile(expr)
	return PathPattern{Label: label, Match: re.MatchString}
}

// Catalog holds the classification tables the checks consult
type Catalog struct {
	// BroadPrincipals match as case-insensitive substrings
	BroadPrincipals []string
	UserWritable    []PathPattern
	Protected       []PathPattern
	Wildcards       []PathPattern
	DriveRoot       PathPattern
}

// DefaultCatalog returns the built-in tables
func DefaultCatalog() *Catalog {
	return &Catalog{
		BroadPrincipals: []string{
			"Everyone",
			"Authenticated Users",
			`BUILTIN\Users`,
			"Users",
			"Domain Users",
			"S-1-1-0",      // Everyone
			"S-1-5-11",     // Authenticated Users
			"S-1-5-32-545", // BUILTIN\Users
		},
		UserWritable: []PathPattern{
			regexPattern("profile appdata", `\\users\\.*\\appdata\\`),
			regexPattern("profile temp", `\\users\\.*\\temp\\`),
			regexPattern("profile downloads", `\\users\\.*\\downloads\\`),
			regexPattern("profile documents", `\\users\\.*\\documents\\`),
			regexPattern("temp", `\\temp\\`),
			regexPattern("windows temp", `\\windows\\temp\\`),
			regexPattern("drive root", `^[a-z]:\\$`),
			regexPattern("drive root escaped", `^[a-z]:\\\\$`),
			// three or more segments after a UNC prefix may point at a writable share
			regexPattern("unc share", `\\\\.*\\.*\\.*`),
		},
		Protected: []PathPattern{
			regexPattern("program files", `\\program files\\`),
			regexPattern("program files x86", `\\program files \(x86\)\\`),
			{Label: "windows", Match: underWindowsExceptTemp},
			regexPattern("system32", `\\windows\\system32\\`),
			regexPattern("syswow64", `\\windows\\syswow64\\`),
		},
		Wildcards: []PathPattern{
			regexPattern("*.exe", `\*\.exe$`),
			regexPattern("*.dll", `\*\.dll$`),
			regexPattern("*.ps1", `\*\.ps1$`),
			regexPattern("*.bat", `\*\.bat$`),
			regexPattern("*.cmd", `\*\.cmd$`),
			regexPattern("wildcard directory", `\\\*\\`),
		},
		DriveRoot: regexPattern("drive root", `^[a-z]:\\?$`),
	}
}

// underWindowsExceptTemp matches any \windows\ segment not followed by temp
func underWindowsExceptTemp(p string) bool {
	const seg = `\windows\`
	for i := 0; i < len(p); {
		j := strings.Index(p[i:], seg)
		if j < 0 {
			return false
		}
		if !strings.HasPrefix(p[i+j+len(seg):], "temp") {
			return true
		}
		i += j + 1
	}
	return false
}

// IsBroadPrincipal reports whether principal names a large population
func (c *Catalog) IsBroadPrincipal(principal string) bool {
	lower := strings.ToLower(principal)
	for _, bp := range c.BroadPrincipals {
		if strings.Contains(lower, strings.ToLower(bp)) {
			return true
		}
	}
	return false
}

// IsUserWritable path
func (c *Catalog) IsUserWritable(path string) bool {
	return matchAny(c.UserWritable, path)
}

// IsProtected path
func (c *Catalog) IsProtected(path string) bool {
	return matchAny(c.Protected, path)
}

// HasDangerousWildcard path
func (c *Catalog) HasDangerousWildcard(path string) bool {
	return matchAny(c.Wildcards, path)
}

// IsDriveRoot path
func (c *Catalog) IsDriveRoot(path string) bool {
	return c.DriveRoot.Match != nil && c.DriveRoot.Match(strings.ToLower(path))
}

func matchAny(patterns []PathPattern, path string) bool {
	lower := strings.ToLower(path)
	for _, p := range patterns {
		if p.Match(lower) {
			return true
		}
	}
	return false
}

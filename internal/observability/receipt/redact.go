package receipt

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitiveFlags are flag names whose values are always redacted.
// Both single-dash and double-dash variants are handled.
var sensitiveFlags = map[string]bool{
	"token":         true,
	"password":      true,
	"secret":        true,
	"api-key":       true,
	"apikey":        true,
	"auth":          true,
	"credential":    true,
	"credentials":   true,
	"bearer":        true,
	"access-token":  true,
	"refresh-token": true,
}

// headerFlags carry "Name: value" pairs; only the value is hidden
var headerFlags = map[string]bool{
	"header": true,
	"H":      true,
}

// sensitiveQueryParams sign blob-storage download URLs
var sensitiveQueryParams = []string{
	"sig",                  // Azure SAS
	"x-amz-signature",      // S3 presigned
	"x-amz-security-token", // S3 session
	"x-goog-signature",     // GCS signed
	"token",
	"access_token",
	"code",
}

// sensitivePrefixes are value prefixes indicating secrets.
var sensitivePrefixes = []string{
	"ghp_",        // GitHub PAT
	"github_pat_", // GitHub fine-grained PAT
	"glpat-",      // GitLab PAT
	"AKIA",        // AWS access key
	"ya29.",       // Google OAuth
	"AIza",        // Google API key
	"sk-",
	"xoxb-",
}

// jwtRegex matches JWT-like patterns (xxx.yyy.zzz where each part is base64-ish).
// This is a heuristic - may have false positives on dotted strings.
var jwtRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}$`)

// longSecretRegex matches 32+ chars of hex or base64 characters.
var longSecretRegex = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{32,}$`)

const redactedValue = "[REDACTED]"

// RedactArgs sanitizes CLI arguments by redacting sensitive values.
// Returns the redacted args and whether any redaction was applied.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}

	redacted := make([]string, len(args))
	wasRedacted := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// --flag=value
		if strings.HasPrefix(arg, "-") {
			if eqIdx := strings.Index(arg, "="); eqIdx > 0 {
				flag := extractFlagName(arg[:eqIdx])
				value, changed := redactFlagValue(flag, arg[eqIdx+1:])
				redacted[i] = arg[:eqIdx+1] + value
				wasRedacted = wasRedacted || changed
				continue
			}

			// --flag value
			flag := extractFlagName(arg)
			if (isSensitiveFlag(flag) || headerFlags[flag]) && i+1 < len(args) {
				redacted[i] = arg
				i++
				value, changed := redactFlagValue(flag, args[i])
				redacted[i] = value
				wasRedacted = wasRedacted || changed
				continue
			}
		}

		value, changed := redactValue(arg)
		redacted[i] = value
		wasRedacted = wasRedacted || changed
	}

	return redacted, wasRedacted
}

func redactFlagValue(flag, value string) (string, bool) {
	switch {
	case isSensitiveFlag(flag):
		return redactedValue, true
	case headerFlags[flag]:
		if idx := strings.Index(value, ":"); idx > 0 {
			return value[:idx+1] + " " + redactedValue, true
		}
		return redactedValue, true
	default:
		return redactValue(value)
	}
}

// redactValue hides secrets in a standalone value; URLs keep their host
// and path so receipts still show where a policy came from.
func redactValue(value string) (string, bool) {
	if u, ok := parseURL(value); ok {
		return redactURL(u)
	}
	if isSensitiveValue(value) {
		return redactedValue, true
	}
	return value, false
}

func parseURL(value string) (*url.URL, bool) {
	if !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
		return nil, false
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func redactURL(u *url.URL) (string, bool) {
	changed := false
	if u.User != nil {
		u.User = url.User(redactedValue)
		changed = true
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			for _, p := range sensitiveQueryParams {
				if strings.EqualFold(key, p) {
					q.Set(key, redactedValue)
					changed = true
				}
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	if !changed {
		return u.String(), false
	}
	// url.String escapes the brackets; keep the marker readable
	return strings.ReplaceAll(u.String(), url.QueryEscape(redactedValue), redactedValue), true
}

// extractFlagName removes leading dashes. Single-letter flags keep case.
func extractFlagName(s string) string {
	s = strings.TrimPrefix(s, "--")
	s = strings.TrimPrefix(s, "-")
	if len(s) == 1 {
		return s
	}
	return strings.ToLower(s)
}

func isSensitiveFlag(flag string) bool {
	return sensitiveFlags[flag]
}

// isSensitiveValue checks if a value looks like a secret by pattern matching.
func isSensitiveValue(value string) bool {
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}

	if jwtRegex.MatchString(value) {
		return true
	}

	// Be conservative to avoid false positives on paths
	if len(value) >= 32 && !strings.ContainsAny(value, `/\.`) {
		if longSecretRegex.MatchString(value) {
			return true
		}
	}

	return false
}

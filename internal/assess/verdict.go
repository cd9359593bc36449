package assess

import "github.com/lockaudit/lockaudit/internal/models"

// signal is what a single check contributes. A floor of SeverityInfo adds a
// reason without raising severity.
type signal struct {
	check          models.CheckID
	reason         string
	recommendation string
	floor          models.Severity
}

// verdict accumulates signals for one finding under construction
type verdict struct {
	severity        models.Severity
	reasons         []string
	recommendations []string
	checks          []models.CheckID
	// primary is the first check to reach the current severity
	primary models.CheckID
}

func newVerdict() *verdict {
	return &verdict{severity: models.SeverityInfo}
}

// apply raises severity to the signal's floor (max combine)
func (v *verdict) apply(s signal) {
	v.reasons = append(v.reasons, s.reason)
	v.recommendations = append(v.recommendations, s.recommendation)
	v.checks = append(v.checks, s.check)
	if s.floor > v.severity || v.primary == "" {
		v.severity = max(v.severity, s.floor)
		v.primary = s.check
	}
}

// clampProtected is the terminal override: only High is downgraded, and
// every recommendation becomes the defense-in-depth note.
func (v *verdict) clampProtected() {
	if v.severity != models.SeverityHigh {
		return
	}
	v.severity = models.SeverityInfo
	for i := range v.recommendations {
		v.recommendations[i] = recProtectedPath
	}
}

func (v *verdict) fired() bool {
	return len(v.reasons) > 0
}

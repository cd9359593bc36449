package gate

import (
	"fmt"
	"strings"

	"github.com/lockaudit/lockaudit/internal/models"
)

// FailOn is a severity threshold; the zero value never fails
type FailOn struct {
	Threshold models.Severity
	Set       bool
}

// ParseFailOn accepts high, medium, low, info, or "" / none for no threshold
func ParseFailOn(s string) (FailOn, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FailOn{}, nil
	}
	sev, err := models.ParseSeverity(s)
	if err != nil {
		return FailOn{}, fmt.Errorf("invalid fail-on level: %s (use high, medium, low, info, or none)", s)
	}
	return FailOn{Threshold: sev, Set: true}, nil
}

// ShouldFail checks one severity
func (f FailOn) ShouldFail(s models.Severity) bool {
	return f.Set && s >= f.Threshold
}

// Hits counts findings at or above the threshold
func (f FailOn) Hits(findings []models.Finding) int {
	if !f.Set {
		return 0
	}
	n := 0
	for _, x := range findings {
		if x.Severity >= f.Threshold {
			n++
		}
	}
	return n
}

func (f FailOn) String() string {
	if !f.Set {
		return "none"
	}
	return strings.ToLower(f.Threshold.String())
}

// Package baseline saves the accepted findings of a policy so later runs can
// be compared against them.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/version"
)

// DefaultPath of the baseline file
const DefaultPath = "applocker-baseline.json"

// ErrUnsupportedVersion is returned for baselines written by a newer tool
var ErrUnsupportedVersion = errors.New("unsupported baseline version")

type Manager struct {
	now func() time.Time
}

func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// Build a baseline from an inspection
func (m *Manager) Build(source models.BaselineSource, findings []models.Finding) (*models.Baseline, error) {
	fps, err := Fingerprints(findings)
	if err != nil {
		return nil, err
	}

	b := &models.Baseline{
		BaselineVersion: models.BaselineVersion,
		Generator:       "lockaudit " + version.BuildVersion(),
		CreatedAt:       m.now().UTC().Format(time.RFC3339),
		Source:          source,
		Findings:        make([]models.BaselineEntry, len(findings)),
	}
	for i, f := range findings {
		b.Findings[i] = models.BaselineEntry{Fingerprint: fps[i], Finding: f.Record()}
	}
	return b, nil
}

// Save baseline
func (m *Manager) Save(b *models.Baseline, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	// Ensure file ends with newline for clean git diffs
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	return nil
}

// Load baseline
func (m *Manager) Load(path string) (*models.Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	var b models.Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}

	if b.BaselineVersion != models.BaselineVersion {
		return nil, fmt.Errorf("%w: %q (expected %s)", ErrUnsupportedVersion, b.BaselineVersion, models.BaselineVersion)
	}

	// Older files may lack fingerprints; recompute from the stored record
	for i := range b.Findings {
		if b.Findings[i].Fingerprint != "" {
			continue
		}
		fp, err := Fingerprint(b.Findings[i].Finding)
		if err != nil {
			return nil, err
		}
		b.Findings[i].Fingerprint = fp
	}

	return &b, nil
}

func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

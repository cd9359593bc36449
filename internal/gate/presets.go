package gate

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lockaudit/lockaudit/internal/models"
)

//go:embed presets/*.yaml
var presetFS embed.FS

var (
	presetMu    sync.Mutex
	presetCache = map[string]*models.GateConfig{}
)

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"baseline": "presets/baseline.yaml",
	"strict":   "presets/strict.yaml",
}

// GetPreset returns a gate preset by name, or nil if not found
func GetPreset(name string) *models.GateConfig {
	presetMu.Lock()
	defer presetMu.Unlock()

	if cached, ok := presetCache[name]; ok {
		return cached
	}

	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	var config models.GateConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil
	}

	presetCache[name] = &config
	return &config
}

// ListPresetNames sorted
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a gate policy from YAML
func LoadFile(path string) (*models.GateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gate policy: %w", err)
	}

	var config models.GateConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse gate policy YAML: %w", err)
	}

	if len(config.Rules) == 0 {
		return nil, fmt.Errorf("gate policy must have at least one rule")
	}
	if config.Mode != "" && config.Mode != models.GateModeStrict && config.Mode != models.GateModeWarn {
		return nil, fmt.Errorf("invalid gate mode %q (use strict or warn)", config.Mode)
	}
	for _, r := range config.Rules {
		if r.Severity != "" && r.Severity != models.GateSeverityError && r.Severity != models.GateSeverityWarn {
			return nil, fmt.Errorf("rule %q: invalid severity %q (use error or warn)", r.Name, r.Severity)
		}
	}

	return &config, nil
}

// Resolve treats ref as a preset name first, then as a file path
func Resolve(ref string) (*models.GateConfig, Source, error) {
	if p := GetPreset(ref); p != nil {
		return p, Source{Type: "preset", Name: ref}, nil
	}
	if _, err := os.Stat(ref); err != nil {
		return nil, Source{}, fmt.Errorf("unknown gate %q: not a preset (%s) or readable file", ref, strings.Join(ListPresetNames(), ", "))
	}
	config, err := LoadFile(ref)
	if err != nil {
		return nil, Source{}, err
	}
	return config, Source{Type: "file", Name: ref}, nil
}

package bundler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lockaudit/lockaudit/internal/version"
)

// ManifestName inside the bundle
const ManifestName = "manifest.json"

// BundleManifest contents
type BundleManifest struct {
	ToolVersion  string         `json:"tool_version"`
	Source       string         `json:"source,omitempty"`
	PolicySHA256 string         `json:"policy_sha256"`
	Encoding     string         `json:"encoding"`
	Summary      string         `json:"summary"`
	Files        []ManifestFile `json:"files"`
}

// ManifestFile desc
type ManifestFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// GenerateManifest hashes every entry; files are sorted by name
func GenerateManifest(in Input, summary string, entries []Entry) *BundleManifest {
	manifest := &BundleManifest{
		ToolVersion:  version.BuildVersion(),
		Source:       in.Source,
		PolicySHA256: in.SHA256,
		Encoding:     in.Encoding,
		Summary:      summary,
		Files:        make([]ManifestFile, 0, len(entries)),
	}

	for _, e := range entries {
		manifest.Files = append(manifest.Files, ManifestFile{
			Name:   e.Name,
			SHA256: hashBytes(e.Data),
			Size:   int64(len(e.Data)),
		})
	}

	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].Name < manifest.Files[j].Name
	})

	return manifest
}

// ToJSON deterministic
func (m *BundleManifest) ToJSON() ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func hashBytes(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

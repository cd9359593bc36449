// Package bundler packages an inspection as a reproducible evidence zip.
package bundler

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/report"
)

// zipEpoch is the fixed mtime of every entry
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Input for a bundle. Policy holds the original bytes as read.
type Input struct {
	Source   string
	SHA256   string
	Encoding string
	Policy   []byte
	Findings []models.Finding
}

// Entry is one file in the bundle
type Entry struct {
	Name string
	Data []byte
}

// Build renders every entry, manifest included, sorted by name
func Build(in Input) ([]Entry, *BundleManifest, error) {
	doc := report.Document{
		Source:   in.Source,
		SHA256:   in.SHA256,
		Encoding: in.Encoding,
		Findings: in.Findings,
	}

	entries := []Entry{{Name: "policy.xml", Data: in.Policy}}
	renders := []struct {
		name   string
		format report.Format
	}{
		{"findings.csv", report.FormatCSV},
		{"findings.json", report.FormatJSON},
		{"findings.sarif", report.FormatSARIF},
	}
	for _, r := range renders {
		var buf bytes.Buffer
		if err := report.Write(&buf, r.format, doc, report.Options{}); err != nil {
			return nil, nil, fmt.Errorf("failed to render %s: %w", r.name, err)
		}
		entries = append(entries, Entry{Name: r.name, Data: buf.Bytes()})
	}

	summary := report.Summarize(in.Findings)
	entries = append(entries, Entry{Name: "README.md", Data: []byte(readme(doc, summary))})

	manifest := GenerateManifest(in, summary.String(), entries)
	manifestJSON, err := manifest.ToJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	entries = append(entries, Entry{Name: ManifestName, Data: manifestJSON})

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, manifest, nil
}

// WriteZip writes entries in the given order with fixed timestamps
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := addBytesToZip(zw, e.Name, e.Data); err != nil {
			return fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}

// CreateBundle builds and writes the zip to path
func CreateBundle(path string, in Input) (*BundleManifest, error) {
	entries, manifest, err := Build(in)
	if err != nil {
		return nil, err
	}

	outputFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteZip(outputFile, entries); err != nil {
		outputFile.Close()
		return nil, err
	}
	if err := outputFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close bundle: %w", err)
	}
	return manifest, nil
}

// addBytesToZip helper
func addBytesToZip(zw *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	header.SetMode(0644)

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write(data)
	return err
}

func readme(doc report.Document, s report.Summary) string {
	var b strings.Builder
	b.WriteString("# AppLocker Inspection Evidence\n\n")
	if doc.Source != "" {
		fmt.Fprintf(&b, "Policy: `%s`\n\n", doc.Source)
	}
	fmt.Fprintf(&b, "Encoding: %s\n\nPolicy SHA-256: `%s`\n\n", doc.Encoding, doc.SHA256)
	fmt.Fprintf(&b, "Findings: %s\n\n", s.String())
	b.WriteString("## Contents\n\n")
	b.WriteString("| File | Description |\n|---|---|\n")
	b.WriteString("| policy.xml | Policy bytes exactly as inspected |\n")
	b.WriteString("| findings.csv | Findings, one row each |\n")
	b.WriteString("| findings.json | Findings as a JSON array |\n")
	b.WriteString("| findings.sarif | Findings as SARIF 2.1.0 |\n")
	b.WriteString("| manifest.json | SHA-256 and size of every other file |\n")
	b.WriteString("\n## Verify\n\n```sh\nunzip -o evidence.zip -d evidence && cd evidence\nsha256sum policy.xml findings.csv findings.json findings.sarif README.md\n```\n\n")
	b.WriteString("Compare the digests with `manifest.json`.\n")
	return b.String()
}

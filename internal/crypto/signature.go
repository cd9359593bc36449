// Package crypto signs and verifies lockaudit artifacts with Ed25519 keys.
package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	SigTypeEd25519 = "ed25519"

	// CanonJCS marks signatures computed over RFC 8785 canonical JSON
	CanonJCS = "jcs-rfc8785"
)

// SignatureHeader metadata
type SignatureHeader struct {
	CanonVersion string `json:"canon_version"`
	SigType      string `json:"sig_type,omitempty"`
}

// SignatureEnvelope header + payload
type SignatureEnvelope struct {
	Header    SignatureHeader
	Signature []byte
}

// WriteSignature creates the envelope: a JSON header line, then the hex signature
func WriteSignature(sig []byte, canonVersion string) []byte {
	header := SignatureHeader{CanonVersion: canonVersion, SigType: SigTypeEd25519}
	headerBytes, _ := json.Marshal(header)

	return []byte(string(headerBytes) + "\n" + hex.EncodeToString(sig) + "\n")
}

// ReadSignature parses an envelope written by WriteSignature
func ReadSignature(data []byte) (*SignatureEnvelope, error) {
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, "{") {
		return nil, fmt.Errorf("invalid signature format: missing header")
	}

	lines := strings.SplitN(content, "\n", 2)
	if len(lines) != 2 {
		return nil, fmt.Errorf("invalid signature format: expected header and payload")
	}

	var header SignatureHeader
	if err := json.Unmarshal([]byte(lines[0]), &header); err != nil {
		return nil, fmt.Errorf("invalid signature header: %w", err)
	}
	if header.CanonVersion == "" {
		return nil, fmt.Errorf("invalid signature header: canon_version is required")
	}
	if header.SigType != "" && header.SigType != SigTypeEd25519 {
		return nil, fmt.Errorf("unsupported signature type %q", header.SigType)
	}

	sig, err := hex.DecodeString(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}

	return &SignatureEnvelope{Header: header, Signature: sig}, nil
}

// GetCanonVersion returns canonicalization version
func (e *SignatureEnvelope) GetCanonVersion() string {
	return e.Header.CanonVersion
}

package baseline

import (
	"errors"
	"fmt"
	"os"

	"github.com/lockaudit/lockaudit/internal/crypto"
)

// ErrSignatureMismatch means the baseline changed after it was signed
var ErrSignatureMismatch = errors.New("baseline signature does not match")

// SignaturePath is where Sign writes by default
func SignaturePath(baselinePath string) string {
	return baselinePath + ".sig"
}

// Sign writes a detached Ed25519 signature over the canonical form of the
// baseline at path
func Sign(path, privateKeyPath, sigPath string) error {
	canonical, err := canonicalFile(path)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(canonical, privateKeyPath)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	if err := os.WriteFile(sigPath, crypto.WriteSignature(sig, crypto.CanonJCS), 0644); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}
	return nil
}

// Verify checks the detached signature for the baseline at path
func Verify(path, publicKeyPath, sigPath string) error {
	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	env, err := crypto.ReadSignature(sigData)
	if err != nil {
		return fmt.Errorf("invalid signature file: %w", err)
	}
	if env.GetCanonVersion() != crypto.CanonJCS {
		return fmt.Errorf("unsupported canonicalization %q", env.GetCanonVersion())
	}

	canonical, err := canonicalFile(path)
	if err != nil {
		return err
	}
	valid, err := crypto.Verify(canonical, env.Signature, publicKeyPath)
	if err != nil {
		return fmt.Errorf("verification error: %w", err)
	}
	if !valid {
		return ErrSignatureMismatch
	}
	return nil
}

func canonicalFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}
	canonical, err := CanonicalJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize baseline: %w", err)
	}
	return canonical, nil
}

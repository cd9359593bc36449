package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
)

const (
	privateKeyType = "ED25519 PRIVATE KEY"
	publicKeyType  = "ED25519 PUBLIC KEY"
)

// GenerateKeys writes a new ed25519 keypair; existing files are never overwritten
func GenerateKeys(privateKeyPath, publicKeyPath string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	privateBlock := &pem.Block{
		Type:  privateKeyType,
		Bytes: privateKey,
	}
	privateFile, err := os.OpenFile(privateKeyPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create private key file: %w", err)
	}
	defer privateFile.Close()

	if err := pem.Encode(privateFile, privateBlock); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	publicBlock := &pem.Block{
		Type:  publicKeyType,
		Bytes: publicKey,
	}
	publicFile, err := os.OpenFile(publicKeyPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create public key file: %w", err)
	}
	defer publicFile.Close()

	if err := pem.Encode(publicFile, publicBlock); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	return nil
}

// readPEM loads a single block of the expected type
func readPEM(path, wantType string, wantSize int) ([]byte, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", path, err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block in %s", path)
	}
	if block.Type != wantType {
		return nil, fmt.Errorf("invalid key type: expected %s, got %s", wantType, block.Type)
	}
	if len(block.Bytes) != wantSize {
		return nil, fmt.Errorf("invalid key size in %s", path)
	}
	return block.Bytes, nil
}

// Sign data
func Sign(data []byte, privateKeyPath string) ([]byte, error) {
	key, err := readPEM(privateKeyPath, privateKeyType, ed25519.PrivateKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(ed25519.PrivateKey(key), data), nil
}

// Verify reports whether signature matches data under the public key
func Verify(data []byte, signature []byte, publicKeyPath string) (bool, error) {
	key, err := readPEM(publicKeyPath, publicKeyType, ed25519.PublicKeySize)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(key), data, signature), nil
}

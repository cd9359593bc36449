package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteSignature(t *testing.T) {
	sig := []byte{0xde, 0xad, 0xbe, 0xef}
	result := WriteSignature(sig, CanonJCS)

	expected := "{\"canon_version\":\"jcs-rfc8785\",\"sig_type\":\"ed25519\"}\ndeadbeef\n"
	if string(result) != expected {
		t.Errorf("WriteSignature:\nexpected: %s\ngot:      %s", expected, result)
	}
}

func TestReadSignature_RoundTrip(t *testing.T) {
	sig := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	env, err := ReadSignature(WriteSignature(sig, CanonJCS))
	if err != nil {
		t.Fatalf("ReadSignature failed: %v", err)
	}
	if env.GetCanonVersion() != CanonJCS {
		t.Errorf("expected %s, got %s", CanonJCS, env.GetCanonVersion())
	}
	if !bytes.Equal(env.Signature, sig) {
		t.Errorf("signature mismatch: %x vs %x", env.Signature, sig)
	}
}

func TestReadSignature_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"raw hex without header", "deadbeef", "missing header"},
		{"header only", `{"canon_version":"jcs-rfc8785"}`, "expected header and payload"},
		{"bad header json", "{not json}\ndeadbeef", "invalid signature header"},
		{"missing canon version", "{\"sig_type\":\"ed25519\"}\ndeadbeef", "canon_version is required"},
		{"unsupported type", "{\"canon_version\":\"jcs-rfc8785\",\"sig_type\":\"rsa-pss\"}\nAAAA", "unsupported signature type"},
		{"bad hex", "{\"canon_version\":\"jcs-rfc8785\"}\nnot-hex!", "invalid signature hex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSignature([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSignVerify(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.key")
	pub := filepath.Join(dir, "public.key")

	if err := GenerateKeys(priv, pub); err != nil {
		t.Fatalf("GenerateKeys failed: %v", err)
	}
	info, err := os.Stat(priv)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("private key mode = %v, want owner-only", info.Mode().Perm())
	}

	data := []byte(`{"baseline_version":"1.0"}`)
	sig, err := Sign(data, priv)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	valid, err := Verify(data, sig, pub)
	if err != nil || !valid {
		t.Fatalf("Verify = %v, %v; want true", valid, err)
	}

	valid, err = Verify([]byte(`{"baseline_version":"1.1"}`), sig, pub)
	if err != nil || valid {
		t.Errorf("tampered data verified: %v, %v", valid, err)
	}
}

func TestGenerateKeys_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.key")
	if err := os.WriteFile(priv, []byte("existing"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := GenerateKeys(priv, filepath.Join(dir, "public.key")); err == nil {
		t.Error("expected error when private key exists")
	}
	data, _ := os.ReadFile(priv)
	if string(data) != "existing" {
		t.Error("existing private key was modified")
	}
}

func TestSign_WrongKeyType(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.key")
	pub := filepath.Join(dir, "public.key")
	if err := GenerateKeys(priv, pub); err != nil {
		t.Fatal(err)
	}

	if _, err := Sign([]byte("x"), pub); err == nil || !strings.Contains(err.Error(), "invalid key type") {
		t.Errorf("signing with public key: err = %v", err)
	}
	if _, err := Verify([]byte("x"), []byte("sig"), priv); err == nil || !strings.Contains(err.Error(), "invalid key type") {
		t.Errorf("verifying with private key: err = %v", err)
	}
}

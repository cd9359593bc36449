package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestBaselineSignCmd_FlagsExist checks presence
func TestBaselineSignCmd_FlagsExist(t *testing.T) {
	for _, name := range []string{"baseline", "key", "output"} {
		t.Run(name, func(t *testing.T) {
			if baselineSignCmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q to be registered", name)
			}
		})
	}
}

// TestBaselineVerifyCmd_FlagsExist checks presence
func TestBaselineVerifyCmd_FlagsExist(t *testing.T) {
	for _, name := range []string{"baseline", "signature", "key"} {
		t.Run(name, func(t *testing.T) {
			if baselineVerifyCmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q to be registered", name)
			}
		})
	}
}

func TestKeygen_RefusesExisting(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.key")
	if err := os.WriteFile(priv, []byte("existing"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(t, "keygen", "--private", priv, "--public", filepath.Join(dir, "public.key"))
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("err = %v, want already exists", err)
	}
}

func TestSignVerifyBaseline(t *testing.T) {
	dir := t.TempDir()
	policy := writePolicy(t, dir, testPolicy)
	baselineFile := filepath.Join(dir, "applocker-baseline.json")
	priv := filepath.Join(dir, "private.key")
	pub := filepath.Join(dir, "public.key")

	out, err := executeCommand(t, "keygen", "--private", priv, "--public", pub)
	if err != nil {
		t.Fatalf("keygen failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Keep your private key secret") {
		t.Errorf("unexpected keygen output:\n%s", out)
	}

	if out, err := executeCommand(t, "baseline", "save", "-o", baselineFile, policy); err != nil {
		t.Fatalf("baseline save failed: %v\n%s", err, out)
	}

	out, err = executeCommand(t, "baseline", "sign", "-b", baselineFile, "-k", priv)
	if err != nil {
		t.Fatalf("baseline sign failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, baselineFile+".sig") || !strings.Contains(out, "jcs-rfc8785") {
		t.Errorf("unexpected sign output:\n%s", out)
	}

	out, err = executeCommand(t, "baseline", "verify", "-b", baselineFile, "-k", pub)
	if err != nil || !strings.Contains(out, "Signature Verified") {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}

	if out, err := executeCommand(t, "diff", "-b", baselineFile, "--verify-key", pub, policy); err != nil {
		t.Errorf("diff with a valid signature failed: %v\n%s", err, out)
	}

	data, err := os.ReadFile(baselineFile)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"High"`, `"Low"`, 1)
	if err := os.WriteFile(baselineFile, []byte(tampered), 0644); err != nil {
		t.Fatal(err)
	}

	out, err = executeCommand(t, "baseline", "verify", "-b", baselineFile, "-k", pub)
	if !errors.Is(err, errCheckFailed) || !strings.Contains(out, "TAMPER DETECTED") {
		t.Errorf("tampered baseline: err = %v\n%s", err, out)
	}

	_, err = executeCommand(t, "diff", "-b", baselineFile, "--verify-key", pub, policy)
	if !errors.Is(err, errCheckFailed) {
		t.Errorf("diff should refuse a tampered baseline, got %v", err)
	}
}

func TestBaselineVerify_WrongKeyType(t *testing.T) {
	dir := t.TempDir()
	policy := writePolicy(t, dir, testPolicy)
	baselineFile := filepath.Join(dir, "applocker-baseline.json")
	priv := filepath.Join(dir, "private.key")
	pub := filepath.Join(dir, "public.key")

	if _, err := executeCommand(t, "keygen", "--private", priv, "--public", pub); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(t, "baseline", "save", "-o", baselineFile, policy); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(t, "baseline", "sign", "-b", baselineFile, "-k", priv); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(t, "baseline", "verify", "-b", baselineFile, "-k", priv)
	if err == nil || errors.Is(err, errCheckFailed) || !strings.Contains(err.Error(), "invalid key type") {
		t.Errorf("err = %v, want invalid key type", err)
	}
}

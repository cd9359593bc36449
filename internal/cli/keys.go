package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/lockaudit/lockaudit/internal/baseline"
	"github.com/lockaudit/lockaudit/internal/crypto"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	"github.com/spf13/cobra"
)

const (
	defaultPrivateKeyPath = "private.key"
	defaultPublicKeyPath  = "public.key"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate Ed25519 keypair for signing baselines",
	Long: `Generate a new Ed25519 keypair for signing applocker-baseline.json files.

This creates two files:
  - private.key: Keep this secret! Used to sign baselines.
  - public.key:  Share this with your team to verify signatures.

Example:
  lockaudit keygen
  lockaudit keygen --private my-private.key --public my-public.key`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

var (
	keygenPrivateFlag string
	keygenPublicFlag  string
)

func init() {
	keygenCmd.Flags().StringVar(&keygenPrivateFlag, "private", defaultPrivateKeyPath, "Path for the private key file")
	keygenCmd.Flags().StringVar(&keygenPublicFlag, "public", defaultPublicKeyPath, "Path for the public key file")
}

// GetKeygenCmd returns the keygen command
func GetKeygenCmd() *cobra.Command {
	return keygenCmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(keygenPrivateFlag); err == nil {
		return fmt.Errorf("private key already exists at %s (use different path or delete existing)", keygenPrivateFlag)
	}
	if _, err := os.Stat(keygenPublicFlag); err == nil {
		return fmt.Errorf("public key already exists at %s (use different path or delete existing)", keygenPublicFlag)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Generating Ed25519 keypair...")
	if err := crypto.GenerateKeys(keygenPrivateFlag, keygenPublicFlag); err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}

	fmt.Fprintf(out, "%s✓ Private key saved: %s%s\n", colorGreen, keygenPrivateFlag, colorReset)
	fmt.Fprintf(out, "%s✓ Public key saved:  %s%s\n", colorGreen, keygenPublicFlag, colorReset)
	fmt.Fprintf(out, "\n%s⚠ Keep your private key secret!%s\n", colorRed, colorReset)
	return nil
}

// baselineSignCmd signs baselines
var baselineSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign applocker-baseline.json with your private key",
	Long: `Sign the baseline using your Ed25519 private key.

This creates a signature file (applocker-baseline.json.sig) that 'lockaudit
baseline verify' and 'lockaudit diff --verify-key' check before trusting the
accepted findings.

The signature covers the RFC 8785 canonical form of the baseline, so
re-indenting the file does not invalidate it.

Example:
  lockaudit baseline sign
  lockaudit baseline sign --baseline baselines/prod.json --key my-private.key`,
	Args: cobra.NoArgs,
	RunE: runBaselineSign,
}

var (
	signBaselineFlag   string
	signPrivateKeyFlag string
	signOutputFlag     string
)

func init() {
	baselineSignCmd.Flags().StringVarP(&signBaselineFlag, "baseline", "b", baseline.DefaultPath, "Path to the baseline to sign")
	baselineSignCmd.Flags().StringVarP(&signPrivateKeyFlag, "key", "k", defaultPrivateKeyPath, "Path to the private key")
	baselineSignCmd.Flags().StringVarP(&signOutputFlag, "output", "o", "", "Path for the signature file (default <baseline>.sig)")
	baselineCmd.AddCommand(baselineSignCmd)
}

func runBaselineSign(cmd *cobra.Command, args []string) error {
	sigPath := signOutputFlag
	if sigPath == "" {
		sigPath = baseline.SignaturePath(signBaselineFlag)
	}
	if err := baseline.Sign(signBaselineFlag, signPrivateKeyFlag, sigPath); err != nil {
		return err
	}

	logging.From(cmd.Context()).Info("baseline", "baseline signed", "baseline", signBaselineFlag, "signature", sigPath)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s✓ Baseline signed successfully%s\n", colorGreen, colorReset)
	fmt.Fprintf(out, "  Signature saved to: %s\n", sigPath)
	fmt.Fprintf(out, "  Canonicalization: %s\n", crypto.CanonJCS)
	return nil
}

// baselineVerifyCmd verifies signatures
var baselineVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify applocker-baseline.json signature",
	Long: `Verify that the baseline matches its signature.

This checks that the accepted findings haven't been edited since they were
signed. Returns exit code 0 if valid, 1 if verification fails.

Example:
  lockaudit baseline verify
  lockaudit baseline verify --baseline prod.json --signature prod.sig --key my-public.key`,
	Args: cobra.NoArgs,
	RunE: runBaselineVerify,
}

var (
	verifyBaselineFlag  string
	verifySignatureFlag string
	verifyPublicKeyFlag string
)

func init() {
	baselineVerifyCmd.Flags().StringVarP(&verifyBaselineFlag, "baseline", "b", baseline.DefaultPath, "Path to the baseline to verify")
	baselineVerifyCmd.Flags().StringVarP(&verifySignatureFlag, "signature", "s", "", "Path to the signature file (default <baseline>.sig)")
	baselineVerifyCmd.Flags().StringVarP(&verifyPublicKeyFlag, "key", "k", defaultPublicKeyPath, "Path to the public key")
	baselineCmd.AddCommand(baselineVerifyCmd)
}

func runBaselineVerify(cmd *cobra.Command, args []string) error {
	sigPath := verifySignatureFlag
	if sigPath == "" {
		sigPath = baseline.SignaturePath(verifyBaselineFlag)
	}
	if err := verifyBaselineSignature(cmd, verifyBaselineFlag, verifyPublicKeyFlag, sigPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✅ Signature Verified%s\n", colorGreen, colorReset)
	return nil
}

// verifyBaselineSignature maps a signature mismatch to errCheckFailed
func verifyBaselineSignature(cmd *cobra.Command, path, publicKeyPath, sigPath string) error {
	err := baseline.Verify(path, publicKeyPath, sigPath)
	if errors.Is(err, baseline.ErrSignatureMismatch) {
		logging.From(cmd.Context()).Warn("baseline", "baseline signature mismatch", "baseline", path, "signature", sigPath)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s❌ TAMPER DETECTED: %s does not match %s%s\n", colorRed, path, sigPath, colorReset)
		return errCheckFailed
	}
	return err
}

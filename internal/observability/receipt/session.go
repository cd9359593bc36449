package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/lockaudit/lockaudit/internal/observability"
)

// MaxErrorLength is the maximum length for error strings in receipts.
const MaxErrorLength = 2048

// Session tracks command execution
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

// Start session
func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithSource records the inspected document. sha256 may be empty, in which
// case it is computed from path when path is a readable file.
func WithSource(path, sha, encoding string) Option {
	return func(r *Receipt) {
		if path == "" {
			return
		}
		ref := &SourceRef{Path: path, SHA256: sha, Encoding: encoding}
		if ref.SHA256 == "" {
			if hash, err := computeSHA256(path); err == nil {
				ref.SHA256 = hash
			}
		}
		r.Source = ref
	}
}

// WithFindings option
func WithFindings(s FindingsSummary) Option {
	return func(r *Receipt) {
		r.Findings = &s
	}
}

// WithDrift option
func WithDrift(d DriftSummary) Option {
	return func(r *Receipt) {
		r.Drift = &d
	}
}

// WithGate option
func WithGate(preset, status string, hits []RuleHit) Option {
	return func(r *Receipt) {
		r.Gate = &GateSummary{
			Preset:   preset,
			Status:   status,
			RulesHit: hits,
		}
	}
}

// WithArtifact records an output file and its digest
func WithArtifact(kind, path string) Option {
	return func(r *Receipt) {
		if path == "" {
			return
		}
		ref := &ArtifactRef{Kind: kind, Path: path}
		if hash, err := computeSHA256(path); err == nil {
			ref.SHA256 = hash
		}
		r.Artifact = ref
	}
}

// Finish and write receipt
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		// No writer configured, receipts disabled
		return nil
	}

	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.Format(time.RFC3339Nano),
		TsEnd:         time.Now().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
	}

	if err != nil {
		r.Result = Result{
			Status: "fail",
			Error:  truncateError(err.Error()),
		}
	} else {
		r.Result = Result{
			Status: "success",
		}
	}

	for _, opt := range opts {
		opt(&r)
	}

	return w.Write(r)
}

func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}

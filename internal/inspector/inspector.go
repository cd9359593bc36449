// Package inspector runs the full pipeline: raw bytes are decoded to text,
// parsed into a policy tree and assessed into findings.
package inspector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/lockaudit/lockaudit/internal/assess"
	"github.com/lockaudit/lockaudit/internal/decoder"
	"github.com/lockaudit/lockaudit/internal/models"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	otelobs "github.com/lockaudit/lockaudit/internal/observability/otel"
	"github.com/lockaudit/lockaudit/internal/policyxml"
	"go.opentelemetry.io/otel/attribute"
)

// Result of one inspection
type Result struct {
	Source   string
	SHA256   string
	Encoding string
	Document *models.PolicyDocument
	Findings []models.Finding
	Duration time.Duration
}

// Inspector wires the decoder and engine
type Inspector struct {
	decoder *decoder.Decoder
	engine  *assess.Engine
}

// Option configures an Inspector
type Option func(*Inspector)

// WithDecoder restricts or reorders candidate encodings
func WithDecoder(d *decoder.Decoder) Option {
	return func(i *Inspector) {
		if d != nil {
			i.decoder = d
		}
	}
}

// WithEngine replaces the assessment engine
func WithEngine(e *assess.Engine) Option {
	return func(i *Inspector) {
		if e != nil {
			i.engine = e
		}
	}
}

func New(opts ...Option) *Inspector {
	d, _ := decoder.New() // default order never fails
	i := &Inspector{decoder: d, engine: assess.NewEngine()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect runs decode, parse and assess. Errors wrap decoder.ErrDecodeFailure
// or policyxml.ErrParseFailure.
func (i *Inspector) Inspect(ctx context.Context, source string, raw []byte) (res *Result, err error) {
	start := time.Now()
	log := logging.From(ctx)

	sum := sha256.Sum256(raw)
	res = &Result{Source: source, SHA256: hex.EncodeToString(sum[:])}

	ctx, span := otelobs.Start(ctx, "lockaudit.inspect",
		attribute.String("lockaudit.source", source),
		attribute.Int("lockaudit.bytes", len(raw)),
	)
	defer func() { otelobs.End(span, err) }()

	log.Event(ctx, "inspect.start", map[string]any{"source": source, "bytes": len(raw)})

	decoded, err := i.decode(ctx, raw)
	if err != nil {
		log.Event(ctx, "inspect.failed", map[string]any{"stage": "decode", "error": err.Error()})
		return nil, err
	}
	res.Encoding = decoded.Encoding
	span.SetAttributes(attribute.String("lockaudit.encoding", decoded.Encoding))

	doc, err := i.parse(ctx, decoded.Text)
	if err != nil {
		log.Event(ctx, "inspect.failed", map[string]any{"stage": "parse", "error": err.Error()})
		return nil, err
	}
	res.Document = doc

	res.Findings = i.assess(ctx, doc)
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.Int("lockaudit.findings", len(res.Findings)))
	log.Event(ctx, "inspect.complete", map[string]any{
		"source":      source,
		"encoding":    res.Encoding,
		"collections": len(doc.Collections),
		"rules":       doc.RuleCount(),
		"findings":    len(res.Findings),
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

func (i *Inspector) decode(ctx context.Context, raw []byte) (res decoder.Result, err error) {
	_, span := otelobs.Start(ctx, "lockaudit.decode")
	defer func() { otelobs.End(span, err) }()

	res, err = i.decoder.Decode(raw)
	if err == nil {
		span.SetAttributes(attribute.String("lockaudit.encoding", res.Encoding))
	}
	return res, err
}

func (i *Inspector) parse(ctx context.Context, text string) (doc *models.PolicyDocument, err error) {
	_, span := otelobs.Start(ctx, "lockaudit.parse")
	defer func() { otelobs.End(span, err) }()

	doc, err = policyxml.Parse(text)
	if err == nil {
		span.SetAttributes(
			attribute.Int("lockaudit.collections", len(doc.Collections)),
			attribute.Int("lockaudit.rules", doc.RuleCount()),
		)
	}
	return doc, err
}

func (i *Inspector) assess(ctx context.Context, doc *models.PolicyDocument) []models.Finding {
	_, span := otelobs.Start(ctx, "lockaudit.assess")
	defer func() { otelobs.End(span, nil) }()

	findings := i.engine.AssessDocument(doc)

	counts := map[models.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	span.SetAttributes(
		attribute.Int("lockaudit.findings.high", counts[models.SeverityHigh]),
		attribute.Int("lockaudit.findings.medium", counts[models.SeverityMedium]),
		attribute.Int("lockaudit.findings.low", counts[models.SeverityLow]),
		attribute.Int("lockaudit.findings.info", counts[models.SeverityInfo]),
	)
	return findings
}

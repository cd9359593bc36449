package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/lockaudit/lockaudit/internal/decoder"
	"github.com/lockaudit/lockaudit/internal/fetch"
	"github.com/lockaudit/lockaudit/internal/inspector"
	"github.com/lockaudit/lockaudit/internal/metrics"
	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/observability/logging"
	"github.com/lockaudit/lockaudit/internal/policyxml"
	"github.com/lockaudit/lockaudit/internal/report"
)

// Error kinds in JSON error bodies
const (
	kindDecodeFailure = "decode_failure"
	kindParseFailure  = "parse_failure"
	kindTooLarge      = "too_large"
	kindRateLimited   = "rate_limited"
	kindBadRequest    = "bad_request"
	kindInternal      = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Kind: kind})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	ctx := observability.WithExistingOpID(r.Context(), r.Header.Get("X-Request-Id"))
	ctx = logging.WithLogger(ctx, s.log)
	log := s.log
	w.Header().Set("X-Request-Id", observability.OpID(ctx))

	if !s.allow(r) {
		s.metrics.RateLimited()
		writeError(w, http.StatusTooManyRequests, kindRateLimited, "rate limit exceeded")
		return
	}

	// query is validated before the body is read
	q := r.URL.Query()
	format := report.FormatJSON
	if v := q.Get("format"); v != "" {
		f, err := report.ParseFormat(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
			return
		}
		format = f
	}
	sevs, err := report.ParseSeverities(q["severity"]...)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
		return
	}
	criteria := report.Criteria{Severities: sevs, Collections: report.ParseCollections(q["collection"]...)}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, kindBadRequest, "failed to read request body")
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		writeError(w, http.StatusBadRequest, kindBadRequest, "empty request body")
		return
	}

	data, _, err := fetch.Decompress(raw, s.cfg.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, fetch.ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
		return
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	res, hit := s.cache.Get(key)
	if hit {
		s.metrics.CacheHit()
		w.Header().Set("X-Lockaudit-Cache", "hit")
	} else {
		w.Header().Set("X-Lockaudit-Cache", "miss")
		start := time.Now()
		res, err = s.inspector.Inspect(ctx, "upload", data)
		switch {
		case errors.Is(err, decoder.ErrDecodeFailure):
			s.metrics.ObserveInspection(metrics.ResultDecodeFailed, time.Since(start))
			writeError(w, http.StatusUnprocessableEntity, kindDecodeFailure, err.Error())
			return
		case errors.Is(err, policyxml.ErrParseFailure):
			s.metrics.ObserveInspection(metrics.ResultParseFailed, time.Since(start))
			writeError(w, http.StatusUnprocessableEntity, kindParseFailure, err.Error())
			return
		case err != nil:
			s.metrics.ObserveInspection(metrics.ResultError, time.Since(start))
			log.Error(component, "inspection failed", "error", err.Error())
			writeError(w, http.StatusInternalServerError, kindInternal, "inspection failed")
			return
		}
		s.metrics.ObserveInspection(metrics.ResultSuccess, res.Duration)
		s.metrics.AddFindings(res.Findings)
		s.cache.Add(key, res)
	}

	doc := documentFor(res, criteria)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Lockaudit-Encoding", res.Encoding)

	if format == report.FormatJSON {
		err = report.WriteEnvelope(w, doc)
	} else {
		err = report.Write(w, format, doc, report.Options{})
	}
	if err != nil {
		log.Error(component, "failed to write response", "error", err.Error())
	}

	log.Event(ctx, "serve.inspect", map[string]any{
		"sha256":   key,
		"cache":    hit,
		"format":   string(format),
		"findings": len(doc.Findings),
	})
}

// documentFor applies the filters; the summary is derived from what remains
func documentFor(res *inspector.Result, c report.Criteria) report.Document {
	findings := res.Findings
	if !c.Empty() {
		findings = report.Filter(findings, c)
	}
	return report.Document{
		SHA256:   res.SHA256,
		Encoding: res.Encoding,
		Findings: findings,
	}
}

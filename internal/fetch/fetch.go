// Package fetch reads policy bytes from a file, stdin or an https URL.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lockaudit/lockaudit/internal/version"
)

// DefaultMaxSize of a policy payload, before and after decompression
const DefaultMaxSize = 32 * 1024 * 1024

// ErrTooLarge is returned when a payload exceeds the size limit
var ErrTooLarge = errors.New("policy exceeds maximum size")

// Source kinds
const (
	KindFile  = "file"
	KindStdin = "stdin"
	KindURL   = "url"
)

type Config struct {
	AllowPrivateHosts bool
	MaxRedirects      int
	Timeout           time.Duration
	MaxSize           int64
}

func DefaultConfig() Config {
	return Config{
		AllowPrivateHosts: false,
		MaxRedirects:      5,
		Timeout:           30 * time.Second,
		MaxSize:           DefaultMaxSize,
	}
}

// Source is a fetched policy. Data is already decompressed and SHA256 is
// computed over Data.
type Source struct {
	Name        string
	Kind        string
	Data        []byte
	SHA256      string
	Compression string
}

type Fetcher struct {
	cfg    Config
	stdin  io.Reader
	client *http.Client
}

type Option func(*Fetcher)

// WithStdin replaces os.Stdin for "-"
func WithStdin(r io.Reader) Option {
	return func(f *Fetcher) { f.stdin = r }
}

// WithHTTPClient replaces the guarded client; URLs are still validated
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	f := &Fetcher{cfg: cfg, stdin: os.Stdin}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = newSecureClient(cfg)
	}
	return f
}

// IsURL reports whether src names a remote policy
func IsURL(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// Read loads src: "-" for stdin, an https URL, or a file path
func (f *Fetcher) Read(ctx context.Context, src string) (*Source, error) {
	var (
		raw  []byte
		kind string
		err  error
	)
	switch {
	case src == "-":
		kind = KindStdin
		raw, err = readLimited(f.stdin, f.cfg.MaxSize)
	case IsURL(src):
		kind = KindURL
		raw, err = f.download(ctx, src)
	default:
		kind = KindFile
		raw, err = f.readFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", src, err)
	}

	data, compression, err := Decompress(raw, f.cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", src, err)
	}

	sum := sha256.Sum256(data)
	return &Source{
		Name:        src,
		Kind:        kind,
		Data:        data,
		SHA256:      hex.EncodeToString(sum[:]),
		Compression: compression,
	}, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file, f.cfg.MaxSize)
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ValidateURL(rawURL, f.cfg.AllowPrivateHosts); err != nil {
		return nil, fmt.Errorf("invalid policy URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.cfg.MaxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, f.cfg.MaxSize)
	}
	return readLimited(resp.Body, f.cfg.MaxSize)
}

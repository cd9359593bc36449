package fetch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression of a fetched payload
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectCompression by magic bytes
func DetectCompression(data []byte) string {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Decompress gzip or zstd payloads; anything else is returned unchanged.
// The output is capped at limit bytes when limit > 0.
func Decompress(data []byte, limit int64) ([]byte, string, error) {
	kind := DetectCompression(data)

	var r io.Reader
	switch kind {
	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, fmt.Errorf("invalid gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case CompressionZstd:
		opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
		if limit > 0 {
			opts = append(opts, zstd.WithDecoderMaxMemory(uint64(limit)+1))
		}
		zr, err := zstd.NewReader(bytes.NewReader(data), opts...)
		if err != nil {
			return nil, kind, fmt.Errorf("invalid zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return data, kind, nil
	}

	out, err := readLimited(r, limit)
	if err != nil {
		return nil, kind, fmt.Errorf("failed to decompress %s payload: %w", kind, err)
	}
	return out, kind, nil
}

// readLimited reads at most limit bytes and errors if more remain
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}

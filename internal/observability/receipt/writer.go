package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer persists receipts
type Writer interface {
	Write(r Receipt) error
	Close() error
}

// Mode selects how a receipt file is written
type Mode string

const (
	// ModeOverwrite keeps only the latest receipt, as indented JSON
	ModeOverwrite Mode = "overwrite"
	// ModeAppend adds one JSON line per run, for CI audit trails
	ModeAppend Mode = "append"
)

// ParseMode validates a --receipt-mode value
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeOverwrite:
		return ModeOverwrite, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("invalid receipt mode %q (use overwrite or append)", s)
	}
}

type writerKey struct{}

func WithWriter(ctx context.Context, w Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// From returns nil when receipts are disabled
func From(ctx context.Context) Writer {
	w, _ := ctx.Value(writerKey{}).(Writer)
	return w
}

type fileWriter struct {
	mu   sync.Mutex
	file *os.File
	mode Mode
}

// NewWriter opens path, creating parent directories
func NewWriter(path, mode string) (Writer, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if m == ModeAppend {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt file: %w", err)
	}
	return &fileWriter{file: f, mode: m}, nil
}

func (w *fileWriter) Write(r Receipt) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if w.mode == ModeAppend {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
		if err == nil {
			err = w.rewind()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// rewind empties the file so the newest receipt replaces the last one
func (w *fileWriter) rewind() error {
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

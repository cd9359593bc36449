package logging

import "fmt"

// Output formats
const (
	FormatPretty = "pretty"
	FormatJSONL  = "jsonl"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levels = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

type Config struct {
	Format string
	Level  string
	// Output is stderr, stdout or a file path
	Output string

	// Rotation applies when Output is a file path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func DefaultConfig() Config {
	return Config{
		Format:     FormatPretty,
		Level:      LevelInfo,
		Output:     "stderr",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

// Validate rejects unknown formats and levels; empty values take defaults
func (c Config) Validate() error {
	switch c.Format {
	case "", FormatPretty, FormatJSONL:
	default:
		return fmt.Errorf("invalid log format %q (use %s or %s)", c.Format, FormatPretty, FormatJSONL)
	}
	if _, ok := levels[c.Level]; c.Level != "" && !ok {
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", c.Level)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	return nil
}

// levelPriority maps unknown levels to info
func levelPriority(level string) int {
	if p, ok := levels[level]; ok {
		return p
	}
	return levels[LevelInfo]
}

package logging

import (
	"context"
	"encoding/json"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/lockaudit/lockaudit/internal/observability"
	"github.com/lockaudit/lockaudit/internal/version"
)

const SchemaVersion = "1.0"

const defaultComponent = "cli"

type jsonlLogger struct {
	writer    io.Writer
	closer    io.Closer
	minLevel  int
	component string // tags Event entries
	mu        *sync.Mutex
}

type logEntry struct {
	Timestamp     string         `json:"ts"`
	Level         string         `json:"level"`
	Event         string         `json:"event,omitempty"`
	Component     string         `json:"component"`
	OpID          string         `json:"op_id"`
	SchemaVersion string         `json:"schema_version"`
	ToolVersion   string         `json:"lockaudit_version,omitempty"`
	GoVersion     string         `json:"go_version,omitempty"`
	Message       string         `json:"msg,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

func newJSONLLogger(w io.Writer, closer io.Closer, level string) *jsonlLogger {
	return &jsonlLogger{
		writer:    w,
		closer:    closer,
		minLevel:  levelPriority(level),
		component: defaultComponent,
		mu:        &sync.Mutex{},
	}
}

func (j *jsonlLogger) log(level, component, msg string, fields ...any) {
	if levelPriority(level) < j.minLevel {
		return
	}

	j.writeEntry(logEntry{
		Timestamp:     time.Now().Format(time.RFC3339Nano),
		Level:         level,
		Component:     component,
		OpID:          "", // No context available in simple log methods
		SchemaVersion: SchemaVersion,
		ToolVersion:   version.BuildVersion(),
		GoVersion:     runtime.Version(),
		Message:       msg,
		Fields:        kvFields(fields),
	})
}

// kvFields pairs alternating key/value arguments; non-string keys are dropped
func kvFields(fields []any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			out[key] = fields[i+1]
		}
	}
	return out
}

func (j *jsonlLogger) Event(ctx context.Context, event string, fields map[string]any) {
	j.writeEntry(logEntry{
		Timestamp:     time.Now().Format(time.RFC3339Nano),
		Level:         LevelInfo,
		Event:         "lockaudit." + event, // Prefix for SIEM namespacing
		Component:     j.component,
		OpID:          observability.OpID(ctx),
		SchemaVersion: SchemaVersion,
		ToolVersion:   version.BuildVersion(),
		GoVersion:     runtime.Version(),
		Fields:        fields,
	})
}

// WithComponent shares the writer; only the Event component differs
func (j *jsonlLogger) WithComponent(component string) Logger {
	clone := *j
	clone.component = component
	clone.closer = nil
	return &clone
}

func (j *jsonlLogger) writeEntry(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return // silently skip malformed entries
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	_, _ = j.writer.Write(data) // best effort
}

func (j *jsonlLogger) Debug(component, msg string, fields ...any) {
	j.log(LevelDebug, component, msg, fields...)
}

func (j *jsonlLogger) Info(component, msg string, fields ...any) {
	j.log(LevelInfo, component, msg, fields...)
}

func (j *jsonlLogger) Warn(component, msg string, fields ...any) {
	j.log(LevelWarn, component, msg, fields...)
}

func (j *jsonlLogger) Error(component, msg string, fields ...any) {
	j.log(LevelError, component, msg, fields...)
}

func (j *jsonlLogger) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

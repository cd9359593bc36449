// Package observability carries per-run identity for lockaudit: every CLI
// invocation and every served request gets an operation ID that logs,
// receipts and spans share.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID generates a new operation ID and stores it in the context.
// Each CLI invocation and HTTP request calls this once.
func WithOpID(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey{}, uuid.NewString())
}

// WithExistingOpID stores a caller-supplied ID, e.g. from X-Request-Id.
// Values that are not UUIDs are replaced with a fresh one.
func WithExistingOpID(ctx context.Context, id string) context.Context {
	if _, err := uuid.Parse(id); err != nil {
		return WithOpID(ctx)
	}
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpID retrieves the operation ID from context
// Returns empty string if no op_id was set
func OpID(ctx context.Context) string {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and
// tests inject them without running the full middleware chain.
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	operatorIDKey    struct{}
	operatorEmailKey struct{}
	operatorRoleKey  struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyOperatorID    = operatorIDKey{}
	ContextKeyOperatorEmail = operatorEmailKey{}
	ContextKeyOperatorRole  = operatorRoleKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// OperatorID retrieves the authenticated operator's id from the context.
// Returns zero if not set.
func OperatorID(ctx context.Context) int64 {
	if id, ok := ctx.Value(ContextKeyOperatorID).(int64); ok {
		return id
	}
	return 0
}

// WithOperatorID injects an operator id into the context.
func WithOperatorID(ctx context.Context, operatorID int64) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorID, operatorID)
}

// OperatorEmail retrieves the authenticated operator's email from the context.
func OperatorEmail(ctx context.Context) string {
	if email, ok := ctx.Value(ContextKeyOperatorEmail).(string); ok {
		return email
	}
	return ""
}

// WithOperatorEmail injects an operator email into the context.
func WithOperatorEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorEmail, email)
}

// OperatorRole retrieves the authenticated operator's role from the context.
// The role is advisory: no endpoint enforces it, it only attributes edits.
func OperatorRole(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyOperatorRole).(string); ok {
		return role
	}
	return ""
}

// WithOperatorRole injects an operator role into the context.
func WithOperatorRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorRole, role)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (importer, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context, for tests and batch
// jobs that need a consistent clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/platinummonkey/backoffice/pkg/contextkeys"
//   ctx = contextkeys.WithPrincipal(ctx, principal)
//   p, ok := contextkeys.GetPrincipal(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the verified auth.Principal
	// Set by: middleware.Principal (pkg/middleware/principal.go)
	// Required by: All protected endpoints, the activity recorder
	// Type: auth.Principal
	PrincipalKey Key = "principal"

	// AgencyIDKey contains the agency id string scoping the request
	// Set by: agency-scoped handlers after context resolution
	// Used by: Activity recorder, agency-scoped operations
	// Type: string
	AgencyIDKey Key = "agency_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// RequestStartTimeKey contains request start timestamp
	// Set by: Observability middleware
	// Used by: Duration calculation in request logs
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the verified principal to the context
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal retrieves the verified principal from context
func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(auth.Principal)
	return p, ok
}

// WithAgencyID adds the scoping agency id to the context
func WithAgencyID(ctx context.Context, agencyID string) context.Context {
	return context.WithValue(ctx, AgencyIDKey, agencyID)
}

// GetAgencyID retrieves the scoping agency id from context
func GetAgencyID(ctx context.Context) string {
	if agencyID, ok := ctx.Value(AgencyIDKey).(string); ok {
		return agencyID
	}
	return ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

package authkit

import (
	"context"
)

type contextKey string

const (
	contextKeyUserID    contextKey = "authkit:user_id"
	contextKeyActorID   contextKey = "authkit:actor_id"
	contextKeyIPAddress contextKey = "authkit:ip_address"
	contextKeyUserAgent contextKey = "authkit:user_agent"
	contextKeyRequestID contextKey = "authkit:request_id"
	contextKeyChecker   contextKey = "authkit:checker"
)

func stringValue(ctx context.Context, key contextKey) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// WithUserID adds the authenticated user's ID to the context. This is the
// subject of permission checks.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID returns the user ID from context, or "" if unset.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, contextKeyUserID)
}

// WithActorID adds an actor ID to the context. The actor is the user
// performing the action, checked for authority and recorded in the audit
// trail. Usually the same as the user ID, but administrative flows can set
// it separately.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyActorID, actorID)
}

// GetActorID returns the actor ID from context, falling back to the user ID
// when no explicit actor was set.
func GetActorID(ctx context.Context) string {
	if actor := stringValue(ctx, contextKeyActorID); actor != "" {
		return actor
	}
	return GetUserID(ctx)
}

// WithIPAddress adds the client IP address for audit and token metadata.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress returns the IP address from context, or "" if unset.
func GetIPAddress(ctx context.Context) string {
	return stringValue(ctx, contextKeyIPAddress)
}

// WithUserAgent adds the client user agent for audit and token metadata.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent returns the user agent from context, or "" if unset.
func GetUserAgent(ctx context.Context) string {
	return stringValue(ctx, contextKeyUserAgent)
}

// WithRequestID adds a correlation ID recorded alongside audit entries.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID returns the request ID from context, or "" if unset.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, contextKeyRequestID)
}

// WithChecker stores a per-user Checker in the context. The authentication
// middleware sets it so handlers can authorize without touching the Service
// directly.
func WithChecker(ctx context.Context, checker *Checker) context.Context {
	return context.WithValue(ctx, contextKeyChecker, checker)
}

// GetChecker returns the Checker from context, or nil if unset.
func GetChecker(ctx context.Context) *Checker {
	if c, ok := ctx.Value(contextKeyChecker).(*Checker); ok {
		return c
	}
	return nil
}

// FromContext is an alias for GetChecker.
func FromContext(ctx context.Context) *Checker {
	return GetChecker(ctx)
}

// AuditContext bundles the audit metadata carried in a context.
type AuditContext struct {
	ActorID   string
	IPAddress string
	UserAgent string
	RequestID string
}

// GetAuditContext extracts the audit metadata from a context.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		ActorID:   GetActorID(ctx),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// WithAuditContext applies the non-empty fields of an AuditContext to the
// context in one call.
func WithAuditContext(ctx context.Context, ac AuditContext) context.Context {
	if ac.ActorID != "" {
		ctx = WithActorID(ctx, ac.ActorID)
	}
	if ac.IPAddress != "" {
		ctx = WithIPAddress(ctx, ac.IPAddress)
	}
	if ac.UserAgent != "" {
		ctx = WithUserAgent(ctx, ac.UserAgent)
	}
	if ac.RequestID != "" {
		ctx = WithRequestID(ctx, ac.RequestID)
	}
	return ctx
}

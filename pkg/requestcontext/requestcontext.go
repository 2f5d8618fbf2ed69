// Package requestcontext carries request-scoped values set by the HTTP middleware
// chain: request id, client metadata, admin actor and request time.
package requestcontext

import (
	"context"
	"time"
)

type (
	ctxKeyRequestID  struct{}
	ctxKeyClientIP   struct{}
	ctxKeyUserAgent  struct{}
	ctxKeyAdminActor struct{}
	ctxKeyNow        struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, requestID)
}

// RequestID returns the request id or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// WithClientMetadata stores the resolved client IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP{}, clientIP)
	return context.WithValue(ctx, ctxKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent{}).(string)
	return v
}

func WithAdminActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyAdminActor{}, actor)
}

// AdminActor returns the X-Admin-Actor-ID of an authenticated admin request.
func AdminActor(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyAdminActor{}).(string)
	return v
}

// WithTime pins the request-scoped "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyNow{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() for
// contexts that did not pass through the request time middleware.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyNow{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

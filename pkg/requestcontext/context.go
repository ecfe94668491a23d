// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and tests
// inject them, without services having to import net/http.
package requestcontext

import (
	"context"
	"time"

	id "onboard/pkg/domain"
)

type (
	sessionIDKey   struct{}
	clientIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// SessionID retrieves the onboarding session id from the context. Returns the
// zero value if not set.
func SessionID(ctx context.Context) id.SessionID {
	if sid, ok := ctx.Value(sessionIDKey{}).(id.SessionID); ok {
		return sid
	}
	return id.SessionID{}
}

// WithSessionID injects a session id into the context.
func WithSessionID(ctx context.Context, sid id.SessionID) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sid)
}

// ClientID retrieves the client (legal entity) id from the context.
func ClientID(ctx context.Context) id.ClientID {
	if cid, ok := ctx.Value(clientIDKey{}).(id.ClientID); ok {
		return cid
	}
	return ""
}

// WithClientID injects a client id into the context.
func WithClientID(ctx context.Context, cid id.ClientID) context.Context {
	return context.WithValue(ctx, clientIDKey{}, cid)
}

// RequestID retrieves the correlation id set by the HTTP middleware. Audit
// events carry it so flow transitions can be traced back to requests.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// Now returns the request-scoped time when set, falling back to wall-clock
// time. Tests inject a fixed time via WithTime to make TTL and audit
// timestamps deterministic.
func Now(ctx context.Context) time.Time {
	if ts, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return ts
	}
	return time.Now()
}

// WithTime injects a fixed request time into the context.
func WithTime(ctx context.Context, ts time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, ts)
}

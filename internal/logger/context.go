package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context. It is attached to the
// request context by the correlation middleware, enriched by the session
// validator, and dies with the request.
type LogContext struct {
	CorrelationID string    // Request correlation id (X-Correlation-ID)
	SessionID     string    // Validated session id, set after lookup
	Partner       string    // Partner tenant identifier
	RouteID       string    // Matched route id from the route table
	ClientIP      string    // Client IP address (without port)
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given correlation id
func NewLogContext(correlationID string) *LogContext {
	return &LogContext{
		CorrelationID: correlationID,
		StartTime:     time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithSession returns a copy with the validated session identity set
func (lc *LogContext) WithSession(sessionID, partner string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
		clone.Partner = partner
	}
	return clone
}

// WithRoute returns a copy with the route id set
func (lc *LogContext) WithRoute(routeID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RouteID = routeID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

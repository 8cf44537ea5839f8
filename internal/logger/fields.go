package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys
// consistently across all log statements so rejections, breaker
// transitions and proxy failures can be correlated in aggregation.
const (
	// Request correlation
	KeyCorrelationID = "correlation_id" // Correlation id propagated across services
	KeyRouteID       = "route_id"       // Route table entry that matched
	KeyPath          = "path"           // Request path
	KeyMethod        = "method"         // HTTP method
	KeyStatus        = "status"         // Response status code

	// Session identity (never the token, never the secret)
	KeySessionID = "session_id" // Validated session id
	KeyPartner   = "partner"    // Partner tenant identifier

	// Client identification
	KeyClientIP = "client_ip" // Client IP address

	// Dependencies
	KeyBreaker  = "breaker"   // Circuit breaker policy name
	KeyUpstream = "upstream"  // Upstream target URI
	KeyRedisKey = "redis_key" // Session store key

	// Operation metadata
	KeyDurationMs    = "duration_ms"    // Operation duration in milliseconds
	KeyError         = "error"          // Error message
	KeyReason        = "reason"         // Rejection reason
	KeyPayloadLength = "payload_length" // Stored payload length in bytes (never content)
)

// CorrelationID returns a slog.Attr for the request correlation id
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// RouteID returns a slog.Attr for the matched route id
func RouteID(id string) slog.Attr {
	return slog.String(KeyRouteID, id)
}

// SessionID returns a slog.Attr for the validated session id
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Partner returns a slog.Attr for the partner tenant identifier
func Partner(p string) slog.Attr {
	return slog.String(KeyPartner, p)
}

// ClientIP returns a slog.Attr for the client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Breaker returns a slog.Attr for a circuit breaker policy name
func Breaker(name string) slog.Attr {
	return slog.String(KeyBreaker, name)
}

// Status returns a slog.Attr for a response status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

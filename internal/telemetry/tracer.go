package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for gateway operations.
// These follow OpenTelemetry semantic conventions where applicable.
// HTTP keys use the standard "http." prefix, gateway-specific keys use
// their own prefix.
//
// Token strings and session secrets must never appear in span
// attributes. Session identifiers are opaque and safe to record.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP = "client.ip"

	// ========================================================================
	// HTTP attributes
	// ========================================================================
	AttrHTTPMethod = "http.method"
	AttrHTTPPath   = "http.path"

	// ========================================================================
	// Gateway attributes
	// ========================================================================
	AttrRouteID       = "gateway.route"
	AttrPartner       = "gateway.partner"
	AttrSessionID     = "gateway.session_id"
	AttrCorrelationID = "gateway.correlation_id"
	AttrErrorCode     = "gateway.error_code"

	// ========================================================================
	// Session store attributes
	// ========================================================================
	AttrSessionKey   = "session.key"
	AttrSessionFound = "session.found"

	// ========================================================================
	// Circuit breaker attributes
	// ========================================================================
	AttrBreakerName = "breaker.name"

	// ========================================================================
	// Upstream attributes
	// ========================================================================
	AttrUpstreamURL    = "upstream.url"
	AttrUpstreamStatus = "upstream.status_code"
)

// Span names for gateway operations.
// Format: <component>.<operation>
const (
	// Root span for request validation
	SpanValidation = "gateway.validate"

	// Upstream proxying
	SpanProxy = "gateway.proxy"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// HTTPMethod returns an attribute for the HTTP method
func HTTPMethod(method string) attribute.KeyValue {
	return attribute.String(AttrHTTPMethod, method)
}

// HTTPPath returns an attribute for the request path
func HTTPPath(path string) attribute.KeyValue {
	return attribute.String(AttrHTTPPath, path)
}

// RouteID returns an attribute for the gateway route identifier
func RouteID(id string) attribute.KeyValue {
	return attribute.String(AttrRouteID, id)
}

// Partner returns an attribute for the partner identifier
func Partner(partner string) attribute.KeyValue {
	return attribute.String(AttrPartner, partner)
}

// SessionID returns an attribute for the session identifier
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// CorrelationID returns an attribute for the request correlation id
func CorrelationID(id string) attribute.KeyValue {
	return attribute.String(AttrCorrelationID, id)
}

// ErrorCode returns an attribute for the gateway error code
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// SessionKey returns an attribute for the session store key
func SessionKey(key string) attribute.KeyValue {
	return attribute.String(AttrSessionKey, key)
}

// SessionFound returns an attribute indicating whether the session record existed
func SessionFound(found bool) attribute.KeyValue {
	return attribute.Bool(AttrSessionFound, found)
}

// BreakerName returns an attribute for circuit breaker name
func BreakerName(name string) attribute.KeyValue {
	return attribute.String(AttrBreakerName, name)
}

// UpstreamURL returns an attribute for the upstream base URL
func UpstreamURL(url string) attribute.KeyValue {
	return attribute.String(AttrUpstreamURL, url)
}

// UpstreamStatus returns an attribute for the upstream response status
func UpstreamStatus(status int) attribute.KeyValue {
	return attribute.Int(AttrUpstreamStatus, status)
}

// StartValidationSpan starts a span for the session validation pipeline
// of one request. This is a convenience function that sets common
// attributes.
func StartValidationSpan(ctx context.Context, routeID, partner string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RouteID(routeID),
	}
	if partner != "" {
		allAttrs = append(allAttrs, Partner(partner))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanValidation, trace.WithAttributes(allAttrs...))
}

// StartSessionSpan starts a span for a session store operation.
func StartSessionSpan(ctx context.Context, operation string, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		SessionKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "session."+operation, trace.WithAttributes(allAttrs...))
}

// StartProxySpan starts a span for the upstream call of one route.
func StartProxySpan(ctx context.Context, routeID, upstream string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RouteID(routeID),
		UpstreamURL(upstream),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanProxy, trace.WithAttributes(allAttrs...))
}

// Package headers defines the canonical user-context envelope injected
// into upstream requests and the static allow-list applied to inbound
// headers before dispatch.
//
// Envelope values always come from the validated session record.
// Inbound values for envelope header names are overwritten, never
// merged, so a client can never smuggle identity headers upstream.
package headers

import (
	"net/http"
	"net/textproto"
)

// Envelope header names. These are the only identity-bearing headers an
// upstream service should trust.
const (
	UserDocumentNumber = "userDocumentNumber"
	UserEmail          = "userEmail"
	UserName           = "userName"
	FundID             = "fundId"
	FundName           = "fundName"
	Partner            = "partner"
	SessionID          = "sessionId"
	RelationshipID     = "relationshipId"
	ContractNumber     = "contractNumber"
	UserPermissions    = "userPermissions"
)

// Correlation is set on every gateway response and every upstream
// request, whether the inbound carried one or not.
const Correlation = "X-Correlation-ID"

// Authorization is consumed by the gateway and never forwarded.
const Authorization = "Authorization"

// Envelope lists every injected header name.
var Envelope = []string{
	UserDocumentNumber,
	UserEmail,
	UserName,
	FundID,
	FundName,
	Partner,
	SessionID,
	RelationshipID,
	ContractNumber,
	UserPermissions,
}

// allowList is the static set of inbound headers forwarded upstream.
// Everything else is stripped. Keys are in canonical MIME form.
var allowList = func() map[string]struct{} {
	names := []string{
		// Content negotiation
		"Accept",
		"Accept-Charset",
		"Accept-Encoding",
		"Accept-Language",
		"Content-Length",
		"Content-Type",

		// Correlation and tracing
		Correlation,
		"X-Request-ID",
		"X-B3-TraceId",
		"X-B3-SpanId",
		"Traceparent",
		"Tracestate",

		// Client and API version hints
		"User-Agent",
		"X-Client-Version",
		"X-Api-Version",

		// Cache validation
		"Cache-Control",
		"If-None-Match",
		"If-Modified-Since",
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[textproto.CanonicalMIMEHeaderKey(n)] = struct{}{}
	}
	return m
}()

// Allowed reports whether an inbound header name survives filtering.
func Allowed(name string) bool {
	_, ok := allowList[textproto.CanonicalMIMEHeaderKey(name)]
	return ok
}

// Filter removes every header not on the allow-list, in place.
func Filter(h http.Header) {
	for name := range h {
		if !Allowed(name) {
			h.Del(name)
		}
	}
}

// Inject sets each envelope header from the given values, replacing any
// inbound value of the same name. Empty values delete the header so an
// optional field absent from the session can never leak through from
// the client.
func Inject(h http.Header, envelope map[string]string) {
	for _, name := range Envelope {
		if v, ok := envelope[name]; ok && v != "" {
			h.Set(name, v)
		} else {
			h.Del(name)
		}
	}
}

// Rewrite applies the full outbound contract: filter to the allow-list,
// then inject the envelope.
func Rewrite(h http.Header, envelope map[string]string) {
	Filter(h)
	Inject(h, envelope)
}

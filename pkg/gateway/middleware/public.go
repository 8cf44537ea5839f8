package middleware

import (
	"net/http"

	"github.com/openfidc/gateway/pkg/gateway/headers"
)

// PublicHeaders is the inbound filter for routes that skip session
// validation. Public routes carry no session, so there is no envelope
// to inject, but the allow-list still applies: Authorization, the
// envelope header names and every other non-allow-listed header are
// stripped before the request reaches the upstream. Without this a
// client could smuggle identity headers through a public route.
func PublicHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers.Filter(r.Header)
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/pkg/gateway/headers"
)

// Correlation runs at the highest precedence. It adopts the inbound
// X-Correlation-ID when present and non-empty, otherwise generates a
// UUID, then writes the value to the outbound request header, the
// response header, and the request-scoped log context. Everything
// downstream reads it from the context.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headers.Correlation)
		if id == "" {
			id = uuid.NewString()
		}

		r.Header.Set(headers.Correlation, id)
		w.Header().Set(headers.Correlation, id)

		lc := logger.NewLogContext(id)
		lc.ClientIP = clientIP(r)
		lc.StartTime = time.Now()

		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), lc)))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

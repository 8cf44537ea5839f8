package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openfidc/gateway/pkg/gateway/metrics"
)

// Metrics observes every request's final status and latency. It sits
// just inside Correlation so it sees the outcome of validation, proxy
// and error mapping alike.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, holder := withErrorKindHolder(r.Context())
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.URL.Path, r.Method, status, time.Since(start))
			if holder.code != "" {
				m.ObserveError(r.URL.Path, r.Method, holder.code)
			}
		})
	}
}

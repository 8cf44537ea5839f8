package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/pkg/errs"
)

// Recoverer turns a handler panic into a mapped 500 instead of a torn
// connection. The stack goes to the log, never to the client.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorCtx(r.Context(), "panic recovered",
					logger.KeyError, fmt.Sprint(rec),
					"stack", string(debug.Stack()))
				WriteError(w, r, errs.Internal("internal error", fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/telemetry"
	"github.com/openfidc/gateway/internal/workpool"
	"github.com/openfidc/gateway/pkg/errs"
	"github.com/openfidc/gateway/pkg/gateway/headers"
	"github.com/openfidc/gateway/pkg/gateway/session"
	"github.com/openfidc/gateway/pkg/gateway/token"
)

// PartnerHeader carries the tenant identifier on every protected
// request.
const PartnerHeader = "partner"

// Validator authenticates and authorizes protected routes: token
// pre-parse, session lookup, HMAC verification, partner agreement,
// relationship and permission checks, then the header rewrite that
// builds the trusted upstream envelope.
type Validator struct {
	store *session.Store
	pool  *workpool.Pool

	// partnerClaimCheck also compares the optional partner claim inside
	// the token against the partner header. Older token revisions carry
	// the claim; when present it must agree.
	partnerClaimCheck bool
}

// NewValidator builds a Validator. pool may be nil, in which case HMAC
// verification runs inline.
func NewValidator(store *session.Store, pool *workpool.Pool, partnerClaimCheck bool) *Validator {
	return &Validator{store: store, pool: pool, partnerClaimCheck: partnerClaimCheck}
}

// Middleware returns the route-scoped validation filter. Checks run in
// a fixed order and abort on the first failure; the upstream is never
// reached without a fully validated session.
func (v *Validator) Middleware(routeID string, requiredPermissions []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithRoute(routeID))
			}

			ctx, span := telemetry.StartValidationSpan(ctx, routeID, "",
				telemetry.HTTPMethod(r.Method), telemetry.HTTPPath(r.URL.Path))
			defer span.End()
			if lc := logger.FromContext(ctx); lc != nil {
				span.SetAttributes(
					telemetry.CorrelationID(lc.CorrelationID),
					telemetry.ClientIP(lc.ClientIP))
			}
			r = r.WithContext(ctx)

			auth := r.Header.Get(headers.Authorization)
			if strings.TrimSpace(auth) == "" {
				WriteError(w, r, errs.SessionInvalid("missing authorization header"))
				return
			}

			partner := strings.TrimSpace(r.Header.Get(PartnerHeader))
			if partner == "" {
				WriteError(w, r, errs.SessionInvalid("missing partner header"))
				return
			}
			span.SetAttributes(telemetry.Partner(partner))

			claims, gerr := token.ExtractClaims(auth)
			if gerr != nil {
				WriteError(w, r, gerr)
				return
			}
			if v.partnerClaimCheck && claims.Partner != "" && !strings.EqualFold(claims.Partner, partner) {
				WriteError(w, r, errs.SessionInvalid("partner mismatch"))
				return
			}

			record, err := v.store.Get(ctx, partner, claims.SessionID)
			if err != nil {
				WriteError(w, r, err)
				return
			}
			if !record.PartnerMatches(partner) {
				WriteError(w, r, errs.SessionInvalid("partner mismatch"))
				return
			}

			if !v.verify(r, auth, record.SessionSecret) {
				WriteError(w, r, errs.SessionInvalid("invalid token signature"))
				return
			}

			if !record.HasValidRelationship() {
				WriteError(w, r, errs.SessionInvalid("no relationship selected"))
				return
			}

			if !record.HasPermissions(requiredPermissions) {
				WriteError(w, r, errs.InsufficientPermissions("missing required permissions"))
				return
			}

			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithSession(record.SessionID, record.Partner))
				r = r.WithContext(ctx)
			}
			span.SetAttributes(telemetry.SessionID(record.SessionID))
			logger.InfoCtx(ctx, "session validated")

			headers.Rewrite(r.Header, record.ToHeaders())

			next.ServeHTTP(w, r)
		})
	}
}

// verify runs HMAC verification, on the worker pool when configured.
func (v *Validator) verify(r *http.Request, auth, secret string) bool {
	if v.pool == nil {
		return token.Validate(auth, secret)
	}
	var ok bool
	if err := v.pool.Do(r.Context(), func() error {
		ok = token.Validate(auth, secret)
		return nil
	}); err != nil {
		return false
	}
	return ok
}

// Package proxy forwards validated requests to their upstream service.
// Each route owns one reverse proxy wrapped in the "downstream" circuit
// breaker and a per-route timeout; responses stream back unchanged.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openfidc/gateway/internal/breaker"
	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/telemetry"
	"github.com/openfidc/gateway/pkg/errs"
	"github.com/openfidc/gateway/pkg/gateway/middleware"
)

// DefaultTimeout bounds one upstream exchange when the route does not
// override it.
const DefaultTimeout = 30 * time.Second

type proxyErrKey struct{}

// Proxy is the terminal handler for one route.
type Proxy struct {
	routeID string
	target  *url.URL
	breaker *breaker.Breaker
	timeout time.Duration
	rp      *httputil.ReverseProxy
}

// New builds the reverse proxy for a route. A zero timeout falls back
// to DefaultTimeout.
func New(routeID, upstream string, br *breaker.Breaker, timeout time.Duration) (*Proxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream %q for route %q: %w", upstream, routeID, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q for route %q needs scheme and host", upstream, routeID)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &Proxy{routeID: routeID, target: target, breaker: br, timeout: timeout}
	p.rp = &httputil.ReverseProxy{
		// Rewrite (not Director) so the proxy adds no X-Forwarded-*
		// headers: the outbound header set stays exactly allow-list
		// plus envelope.
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			// Defer the response to ServeHTTP so the breaker sees the
			// failure first.
			if slot, ok := r.Context().Value(proxyErrKey{}).(*error); ok {
				*slot = err
			}
		},
	}
	return p, nil
}

// ServeHTTP forwards the request under the downstream breaker. Breaker
// rejections and transport failures map to 503; upstream application
// statuses stream through untouched.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sctx, span := telemetry.StartProxySpan(r.Context(), p.routeID, p.target.String(),
		telemetry.HTTPMethod(r.Method))
	defer span.End()
	r = r.WithContext(sctx)

	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	var transportErr error

	err := p.breaker.Do(r.Context(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		ctx = context.WithValue(ctx, proxyErrKey{}, &transportErr)

		p.rp.ServeHTTP(ww, r.WithContext(ctx))
		return transportErr
	})
	if err == nil {
		span.SetAttributes(telemetry.UpstreamStatus(ww.Status()))
		return
	}
	span.RecordError(err)

	// A started response cannot carry a clean error payload anymore.
	// Abort the connection instead of writing a second status line.
	if ww.Status() != 0 || ww.BytesWritten() > 0 {
		logger.WarnCtx(r.Context(), "upstream failed after response started",
			logger.KeyUpstream, p.target.String(),
			logger.KeyStatus, ww.Status(),
			logger.KeyError, err.Error())
		panic(http.ErrAbortHandler)
	}

	var open *breaker.OpenError
	if errors.As(err, &open) {
		middleware.WriteError(ww, r, errs.BreakerOpen(open.Name, err))
		return
	}

	logger.WarnCtx(r.Context(), "upstream call failed",
		logger.KeyUpstream, p.target.String(),
		logger.KeyError, err.Error())
	middleware.WriteError(ww, r, errs.DownstreamUnavailable("service temporarily unavailable", err))
}

// Target returns the configured upstream URL.
func (p *Proxy) Target() *url.URL { return p.target }

// Package middleware implements the gateway's request pipeline:
// correlation-id propagation, metrics capture, session validation,
// panic recovery, and the single error mapper that turns internal
// failure kinds into stable external responses.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/telemetry"
	"github.com/openfidc/gateway/pkg/errs"
	"github.com/openfidc/gateway/pkg/gateway/headers"
)

// ErrorBody is the JSON rendering of every gateway-emitted failure.
type ErrorBody struct {
	Timestamp     string `json:"timestamp"`
	Status        int    `json:"status"`
	Error         string `json:"error"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

// errorKindKey carries a slot the error mapper fills so the metrics
// middleware can label the failure without re-deriving it from the
// status code.
type errorKindKey struct{}

type errorKindHolder struct {
	code string
}

func withErrorKindHolder(ctx context.Context) (context.Context, *errorKindHolder) {
	h := &errorKindHolder{}
	return context.WithValue(ctx, errorKindKey{}, h), h
}

func setErrorKind(ctx context.Context, code string) {
	if h, ok := ctx.Value(errorKindKey{}).(*errorKindHolder); ok {
		h.code = code
	}
}

// WriteError classifies err and renders the external response. It is
// the only place a pipeline failure turns into bytes on the wire.
//
// The correlation-id header is always set. 4xx failures log at WARN,
// 5xx at ERROR, with the correlation and route ids; token contents and
// session secrets never reach a log line.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ge := errs.From(err)
	status := ge.Status()
	code := ge.Code()

	ctx := r.Context()
	setErrorKind(ctx, code)
	telemetry.SetAttributes(ctx, telemetry.ErrorCode(code))
	telemetry.RecordError(ctx, ge)

	correlationID := ""
	if lc := logger.FromContext(ctx); lc != nil {
		correlationID = lc.CorrelationID
	}
	if correlationID != "" {
		w.Header().Set(headers.Correlation, correlationID)
	}

	fields := []any{
		logger.KeyStatus, status,
		"code", code,
		logger.KeyReason, ge.Message,
	}
	if ge.Breaker != "" {
		fields = append(fields, logger.KeyBreaker, ge.Breaker)
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(ctx, "request failed", fields...)
	} else {
		logger.WarnCtx(ctx, "request rejected", fields...)
	}

	body := ErrorBody{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Status:        status,
		Error:         http.StatusText(status),
		Code:          code,
		Message:       ge.Message,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

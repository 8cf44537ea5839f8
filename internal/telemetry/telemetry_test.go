package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "fidc-gateway", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.False(t, IsEnabled())
	assert.NoError(t, shutdown(context.Background()))
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr attribute.KeyValue
		key  string
		want attribute.Value
	}{
		{"client ip", ClientIP("10.0.0.1"), AttrClientIP, attribute.StringValue("10.0.0.1")},
		{"http method", HTTPMethod("POST"), AttrHTTPMethod, attribute.StringValue("POST")},
		{"http path", HTTPPath("/api/simulation/42"), AttrHTTPPath, attribute.StringValue("/api/simulation/42")},
		{"route id", RouteID("simulation"), AttrRouteID, attribute.StringValue("simulation")},
		{"partner", Partner("prevcom"), AttrPartner, attribute.StringValue("prevcom")},
		{"session id", SessionID("s-1"), AttrSessionID, attribute.StringValue("s-1")},
		{"error code", ErrorCode("INVALID_SESSION"), AttrErrorCode, attribute.StringValue("INVALID_SESSION")},
		{"session key", SessionKey("fidc:session:prevcom:s-1"), AttrSessionKey, attribute.StringValue("fidc:session:prevcom:s-1")},
		{"session found", SessionFound(true), AttrSessionFound, attribute.BoolValue(true)},
		{"breaker name", BreakerName("redis"), AttrBreakerName, attribute.StringValue("redis")},
		{"correlation id", CorrelationID("c-1"), AttrCorrelationID, attribute.StringValue("c-1")},
		{"upstream url", UpstreamURL("http://simulation:8080"), AttrUpstreamURL, attribute.StringValue("http://simulation:8080")},
		{"upstream status", UpstreamStatus(200), AttrUpstreamStatus, attribute.IntValue(200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, attribute.Key(tt.key), tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value)
		})
	}
}

func TestStartValidationSpan(t *testing.T) {
	ctx, span := StartValidationSpan(context.Background(), "simulation", "prevcom")
	require.NotNil(t, span)
	defer span.End()

	// The span must be carried in the returned context.
	assert.Equal(t, span, SpanFromContext(ctx))
}

func TestStartValidationSpanWithoutPartner(t *testing.T) {
	// The partner is unknown until the header is read; the span still starts.
	_, span := StartValidationSpan(context.Background(), "simulation", "")
	require.NotNil(t, span)
	span.End()
}

func TestStartSessionSpan(t *testing.T) {
	ctx, span := StartSessionSpan(context.Background(), "lookup", "fidc:session:prevcom:s-1")
	require.NotNil(t, span)
	defer span.End()

	assert.Equal(t, span, SpanFromContext(ctx))
}

func TestStartProxySpan(t *testing.T) {
	ctx, span := StartProxySpan(context.Background(), "simulation", "http://simulation:8080",
		HTTPMethod("GET"))
	require.NotNil(t, span)
	defer span.End()

	assert.Equal(t, span, SpanFromContext(ctx))
}

func TestSpanHelpersAreNoopSafe(t *testing.T) {
	// None of these should panic without an initialized provider.
	ctx := context.Background()

	AddEvent(ctx, "session validated", Partner("prevcom"))
	RecordError(ctx, errors.New("upstream refused"))
	RecordError(ctx, nil)
	SetStatus(ctx, codes.Error, "breaker open")
	SetAttributes(ctx, RouteID("simulation"))

	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

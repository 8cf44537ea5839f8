package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfidc/gateway/internal/breaker"
	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/workpool"
	"github.com/openfidc/gateway/pkg/errs"
	"github.com/openfidc/gateway/pkg/gateway/headers"
	"github.com/openfidc/gateway/pkg/gateway/session"
)

const sessionSecret = "per-session-secret"

// fakeRedis answers session GETs from a map and counts calls.
type fakeRedis struct {
	records map[string]string
	err     error
	calls   int
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.calls++
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	val, ok := f.records[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func signedToken(t *testing.T, secret, sessionID string, extra map[string]any) string {
	t.Helper()
	claims := jwt.MapClaims{"sessionId": sessionID}
	for k, v := range extra {
		claims[k] = v
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func sessionJSON(t *testing.T, s *session.Session) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func validSession() *session.Session {
	return &session.Session{
		SessionID:     "s-1",
		Partner:       "prevcom",
		SessionSecret: sessionSecret,
		UserInfo: session.UserInfo{
			DocumentNumber: "12345678900",
			Name:           "Ana Souza",
			Email:          "ana@example.com",
		},
		Fund: session.Fund{ID: "f-1", Name: "Fundo Prev"},
		RelationshipSelected: &session.Relationship{
			ID:             "REL001",
			ContractNumber: "378192372163682",
		},
		Permissions: []string{"VIEW_SIMULATION_RESULTS"},
	}
}

// upstream records the request it would have proxied.
type upstream struct {
	called  bool
	header  http.Header
	path    string
	method  string
}

func (u *upstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.called = true
		u.header = r.Header.Clone()
		u.path = r.URL.Path
		u.method = r.Method
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

type testGateway struct {
	router   http.Handler
	redis    *fakeRedis
	breaker  *breaker.Breaker
	upstream *upstream
}

func newTestGateway(t *testing.T, required []string, partnerClaimCheck bool) *testGateway {
	t.Helper()
	fr := &fakeRedis{records: map[string]string{
		"fidc:session:prevcom:s-1": sessionJSON(t, validSession()),
	}}
	br := breaker.New(breaker.RedisName, breaker.DefaultPolicies()[breaker.RedisName], nil)
	store := session.NewStore(fr, br, workpool.New(1), 0)
	v := NewValidator(store, workpool.New(1), partnerClaimCheck)
	up := &upstream{}

	r := chi.NewRouter()
	r.Use(Correlation)
	r.Use(Recoverer)
	r.Route("/api/simulation", func(r chi.Router) {
		r.Use(v.Middleware("simulation", required))
		r.Handle("/*", up.handler())
	})

	return &testGateway{router: r, redis: fr, breaker: br, upstream: up}
}

func protectedRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/simulation/42/validate", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("partner", "prevcom")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHappyPath(t *testing.T) {
	gw := newTestGateway(t, []string{"VIEW_SIMULATION_RESULTS"}, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gw.upstream.called)
	assert.Equal(t, "/api/simulation/42/validate", gw.upstream.path)
	assert.Equal(t, http.MethodGet, gw.upstream.method)

	h := gw.upstream.header
	assert.Equal(t, "12345678900", h.Get(headers.UserDocumentNumber))
	assert.Equal(t, "ana@example.com", h.Get(headers.UserEmail))
	assert.Equal(t, "Ana Souza", h.Get(headers.UserName))
	assert.Equal(t, "f-1", h.Get(headers.FundID))
	assert.Equal(t, "Fundo Prev", h.Get(headers.FundName))
	assert.Equal(t, "prevcom", h.Get(headers.Partner))
	assert.Equal(t, "s-1", h.Get(headers.SessionID))
	assert.Equal(t, "REL001", h.Get(headers.RelationshipID))
	assert.Equal(t, "378192372163682", h.Get(headers.ContractNumber))
	assert.Equal(t, "VIEW_SIMULATION_RESULTS", h.Get(headers.UserPermissions))
	assert.Empty(t, h.Get("Authorization"))
}

func TestMissingTokenIsRejected(t *testing.T) {
	gw := newTestGateway(t, nil, false)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.CodeInvalidSession, decodeError(t, rec).Code)
	assert.False(t, gw.upstream.called)
	assert.Zero(t, gw.redis.calls)
}

func TestMissingPartnerHeaderIsRejected(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	req := protectedRequest(t, tok)
	req.Header.Del("partner")
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.CodeInvalidSession, decodeError(t, rec).Code)
	assert.False(t, gw.upstream.called)
}

func TestUnknownPartnerSessionNotFound(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	req := protectedRequest(t, tok)
	req.Header.Set("partner", "btgmais")
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.CodeInvalidSession, decodeError(t, rec).Code)
	assert.False(t, gw.upstream.called)
}

func TestInvalidSignatureIsRejected(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, "some-other-secret", "s-1", nil)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.CodeInvalidSession, decodeError(t, rec).Code)
	assert.False(t, gw.upstream.called)
}

func TestNoRelationshipSelectedIsRejected(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	s := validSession()
	s.RelationshipSelected = nil
	gw.redis.records["fidc:session:prevcom:s-1"] = sessionJSON(t, s)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.CodeInvalidSession, decodeError(t, rec).Code)
	assert.False(t, gw.upstream.called)
}

func TestInsufficientPermissions(t *testing.T) {
	gw := newTestGateway(t, []string{"CREATE_SIMULATION"}, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errs.CodeInsufficientPermission, decodeError(t, rec).Code)
	assert.False(t, gw.upstream.called)
}

func TestRecordPartnerMismatchIsRejected(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	s := validSession()
	s.Partner = "btgmais"
	// Key says prevcom but the stored record says btgmais.
	gw.redis.records["fidc:session:prevcom:s-1"] = sessionJSON(t, s)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, gw.upstream.called)
}

func TestTokenPartnerClaimMismatch(t *testing.T) {
	tok := signedToken(t, sessionSecret, "s-1", map[string]any{"partner": "btgmais"})

	t.Run("rejected when claim check enabled", func(t *testing.T) {
		gw := newTestGateway(t, nil, true)
		rec := httptest.NewRecorder()
		gw.router.ServeHTTP(rec, protectedRequest(t, tok))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, gw.redis.calls)
	})

	t.Run("ignored when claim check disabled", func(t *testing.T) {
		gw := newTestGateway(t, nil, false)
		rec := httptest.NewRecorder()
		gw.router.ServeHTTP(rec, protectedRequest(t, tok))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRedisBreakerOpenShortCircuits(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	gw.redis.err = context.DeadlineExceeded
	tok := signedToken(t, sessionSecret, "s-1", nil)

	for i := 0; i < 25; i++ {
		rec := httptest.NewRecorder()
		gw.router.ServeHTTP(rec, protectedRequest(t, tok))
	}
	require.Equal(t, breaker.StateOpen, gw.breaker.State())

	callsBefore := gw.redis.calls
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.CodeSessionUnavailable, decodeError(t, rec).Code)
	assert.Equal(t, callsBefore, gw.redis.calls, "open breaker must not attempt a session read")
	assert.False(t, gw.upstream.called)
}

func TestEnvelopeOverridesSmuggledHeaders(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	req := protectedRequest(t, tok)
	req.Header.Set(headers.UserDocumentNumber, "00000000000")
	req.Header.Set(headers.UserPermissions, "ADMIN,ROOT")
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345678900", gw.upstream.header.Get(headers.UserDocumentNumber))
	assert.Equal(t, "VIEW_SIMULATION_RESULTS", gw.upstream.header.Get(headers.UserPermissions))
}

func TestOutboundHeadersAreAllowListOrEnvelope(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	req := protectedRequest(t, tok)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", "sid=steal-me")
	req.Header.Set("X-Forwarded-Host", "evil.example.com")
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := make(map[string]struct{}, len(headers.Envelope))
	for _, e := range headers.Envelope {
		envelope[http.CanonicalHeaderKey(e)] = struct{}{}
	}
	for name := range gw.upstream.header {
		_, isEnvelope := envelope[name]
		assert.True(t, headers.Allowed(name) || isEnvelope, "unexpected outbound header %q", name)
	}
	assert.Equal(t, "application/json", gw.upstream.header.Get("Accept"))
}

func TestCorrelationPreserved(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	req := protectedRequest(t, tok)
	req.Header.Set(headers.Correlation, "corr-fixed")
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, req)

	assert.Equal(t, "corr-fixed", rec.Header().Get(headers.Correlation))
	assert.Equal(t, "corr-fixed", gw.upstream.header.Get(headers.Correlation))
}

func TestCorrelationGeneratedWhenAbsent(t *testing.T) {
	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))

	id := rec.Header().Get(headers.Correlation)
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "generated correlation id must be a UUID")
	assert.Equal(t, id, gw.upstream.header.Get(headers.Correlation))
}

func TestErrorResponseCarriesCorrelation(t *testing.T) {
	gw := newTestGateway(t, nil, false)

	req := protectedRequest(t, "")
	req.Header.Set(headers.Correlation, "corr-err")
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, req)

	assert.Equal(t, "corr-err", rec.Header().Get(headers.Correlation))
	body := decodeError(t, rec)
	assert.Equal(t, "corr-err", body.CorrelationID)
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.Equal(t, http.StatusText(http.StatusUnauthorized), body.Error)
	assert.NotEmpty(t, body.Timestamp)
}

func TestRecovererMapsPanicToInternal(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Correlation)
	r.Use(Recoverer)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errs.CodeInternalError, decodeError(t, rec).Code)
}

// Rejections and successes alike must never log the bearer token or the
// session secret.
func TestLogsNeverContainTokenOrSecret(t *testing.T) {
	var logs bytes.Buffer
	logger.InitWithWriter(&logs, "DEBUG", "text", false)
	t.Cleanup(func() { logger.InitWithWriter(&logs, "INFO", "text", false) })

	gw := newTestGateway(t, nil, false)
	tok := signedToken(t, sessionSecret, "s-1", nil)

	// Success, signature failure, and store failure paths.
	rec := httptest.NewRecorder()
	gw.router.ServeHTTP(rec, protectedRequest(t, tok))
	require.Equal(t, http.StatusOK, rec.Code)

	bad := signedToken(t, "wrong", "s-1", nil)
	gw.router.ServeHTTP(httptest.NewRecorder(), protectedRequest(t, bad))

	gw.redis.records["fidc:session:prevcom:s-1"] = `{"broken`
	gw.router.ServeHTTP(httptest.NewRecorder(), protectedRequest(t, tok))

	out := logs.String()
	assert.NotEmpty(t, out)
	assert.NotContains(t, out, tok)
	assert.NotContains(t, out, bad)
	assert.NotContains(t, out, sessionSecret)
}

func TestPublicHeadersAppliesAllowList(t *testing.T) {
	var seen http.Header
	h := PublicHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/list", nil)
	req.Header.Set("Authorization", "Bearer client-token")
	req.Header.Set("X-Evil", "smuggled")
	req.Header.Set(headers.SessionID, "s-forged")
	req.Header.Set("Accept", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, seen.Get("Authorization"))
	assert.Empty(t, seen.Get("X-Evil"))
	assert.Empty(t, seen.Get(headers.SessionID))
	assert.Equal(t, "application/json", seen.Get("Accept"))
}

package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openfidc/gateway/internal/breaker"
	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/telemetry"
	"github.com/openfidc/gateway/internal/workpool"
	"github.com/openfidc/gateway/pkg/errs"
)

// DefaultTimeout bounds a single store read, inside the breaker.
const DefaultTimeout = 3 * time.Second

// RedisGetter is the slice of the go-redis client the store needs.
// Narrowed for stubbing in tests.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Store reads session records from Redis. Each read is composed, outer
// to inner, of the "redis" circuit breaker, a per-call timeout, the GET
// itself, and a single-pass JSON decode on the worker pool.
type Store struct {
	client  RedisGetter
	breaker *breaker.Breaker
	pool    *workpool.Pool
	timeout time.Duration
}

// NewStore builds a Store. A zero timeout falls back to DefaultTimeout;
// a nil pool runs the decode inline.
func NewStore(client RedisGetter, br *breaker.Breaker, pool *workpool.Pool, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{client: client, breaker: br, pool: pool, timeout: timeout}
}

// Get fetches and decodes the session for a partner/session pair.
//
// A missing key is SessionInvalid. A malformed record is Internal,
// logged with the key and payload length only. I/O and timeout failures
// are SessionServiceUnavailable, and feed the breaker so sustained
// Redis trouble trips it; the decode outcome does not, since Redis
// answered.
func (st *Store) Get(ctx context.Context, partner, sessionID string) (*Session, error) {
	key := RedisKey(partner, sessionID)

	ctx, span := telemetry.StartSessionSpan(ctx, "lookup", key)
	defer span.End()

	var (
		sess    *Session
		callErr *errs.Error
	)
	err := st.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, st.timeout)
		defer cancel()

		payload, err := st.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(telemetry.SessionFound(false))
			callErr = errs.SessionInvalid("session not found")
			return nil
		}
		if err != nil {
			return err
		}
		span.SetAttributes(telemetry.SessionFound(true))

		sess, callErr = st.decode(ctx, key, payload)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		var open *breaker.OpenError
		if errors.As(err, &open) {
			span.SetAttributes(telemetry.BreakerName(open.Name))
			return nil, errs.BreakerOpen(open.Name, err)
		}
		logger.WarnCtx(ctx, "session store read failed",
			logger.KeyRedisKey, key, logger.KeyError, err.Error())
		return nil, errs.SessionUnavailable("session store unreachable", err)
	}
	if callErr != nil {
		return nil, callErr
	}
	return sess, nil
}

// decode parses the stored payload, on the worker pool when one is
// configured. Payload content is never logged.
func (st *Store) decode(ctx context.Context, key string, payload []byte) (*Session, *errs.Error) {
	var (
		sess *Session
		err  error
	)
	parse := func() error {
		sess, err = Parse(payload)
		return nil
	}
	if st.pool != nil {
		if perr := st.pool.Do(ctx, parse); perr != nil {
			return nil, errs.Internal("session decode aborted", perr)
		}
	} else {
		_ = parse()
	}
	if err != nil {
		logger.ErrorCtx(ctx, "malformed session record",
			logger.KeyRedisKey, key,
			logger.KeyPayloadLength, len(payload),
			logger.KeyError, err.Error())
		return nil, errs.Internal("malformed session record", err)
	}
	return sess, nil
}

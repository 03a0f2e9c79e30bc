package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader   = "Idempotency-Key"
	idempotencyCacheTTL = 24 * time.Hour
	idempotencyLockTTL  = 30 * time.Second
	maxIdempotencyKey   = 128
)

// IdempotencyKV is the subset of the Redis client used by Idempotency.
type IdempotencyKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key and
// rejects a key whose first request is still running. Requests without the
// header pass through. A nil kv disables the middleware.
func Idempotency(kv IdempotencyKV, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("idempotency")

	return func(next http.Handler) http.Handler {
		if kv == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Idempotency-Key too long"})
				return
			}

			ctx := r.Context()
			scope := r.Method + ":" + r.URL.Path + ":" + key
			cacheKey := fmt.Sprintf("idem:cache:%s", scope)
			lockKey := fmt.Sprintf("idem:lock:%s", scope)

			raw, err := kv.Get(ctx, cacheKey).Bytes()
			switch {
			case err == nil:
				var cached cachedResponse
				if err := json.Unmarshal(raw, &cached); err == nil {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(cached.Status)
					w.Write(cached.Body)
					return
				}
				logger.Warn("discarding unreadable cached response", zap.String("key", cacheKey))
			case !errors.Is(err, redis.Nil):
				// Redis being down must not block ordering.
				logger.Warn("idempotency lookup failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			ok, err := kv.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
			if err != nil {
				logger.Warn("idempotency lock failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "a request with this Idempotency-Key is already in progress"})
				return
			}
			defer kv.Del(context.WithoutCancel(ctx), lockKey)

			rec := &recordingWriter{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}
			data, err := json.Marshal(cachedResponse{Status: rec.status, Body: json.RawMessage(bytes.TrimSpace(rec.body.Bytes()))})
			if err != nil {
				logger.Warn("encode cached response", zap.Error(err))
				return
			}
			if err := kv.Set(context.WithoutCancel(ctx), cacheKey, data, idempotencyCacheTTL).Err(); err != nil {
				logger.Warn("store cached response", zap.Error(err))
			}
		})
	}
}

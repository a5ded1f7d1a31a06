package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrdesk/internal/platform/cache"
	"hrdesk/internal/transport/http/api"
)

const IdempotencyHeader = "Idempotency-Key"

type idempotentResponse struct {
	RequestHash string `json:"requestHash"`
	InFlight    bool   `json:"inFlight,omitempty"`
	Status      int    `json:"status,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// IdempotencyStore is the subset of *cache.JSON the middleware needs.
type IdempotencyStore interface {
	Enabled() bool
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.buf.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotency replays the first completed response for the same actor, path
// and Idempotency-Key. A reused key with a different body is a conflict.
// Without a cache backend the middleware passes requests through. The
// in-flight reservation is released whenever no response gets recorded,
// including when the handler panics.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			user, ok := GetUser(r.Context())
			if key == "" || !ok || !store.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			requestID := GetRequestID(r.Context())

			body, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "validation_error", "invalid request payload", requestID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := RequestHash(body)
			cacheKey := "idem:" + user.EmployeeID + ":" + r.URL.Path + ":" + key

			var stored idempotentResponse
			err = store.Get(r.Context(), cacheKey, &stored)
			switch {
			case err == nil:
				replay(w, stored, hash, requestID)
				return
			case !errors.Is(err, cache.ErrMiss):
				zap.L().Warn("idempotency lookup failed", zap.String("key", cacheKey), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := store.SetNX(r.Context(), cacheKey, idempotentResponse{RequestHash: hash, InFlight: true}, ttl)
			if err != nil {
				zap.L().Warn("idempotency reserve failed", zap.String("key", cacheKey), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is in progress", requestID)
				return
			}

			saved := false
			defer func() {
				if saved {
					return
				}
				if err := store.Delete(context.WithoutCancel(r.Context()), cacheKey); err != nil {
					zap.L().Warn("idempotency release failed", zap.String("key", cacheKey), zap.Error(err))
				}
			}()

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				return
			}
			record := idempotentResponse{RequestHash: hash, Status: capture.status, Body: capture.buf.Bytes()}
			if err := store.Set(r.Context(), cacheKey, record, ttl); err != nil {
				zap.L().Warn("idempotency save failed", zap.String("key", cacheKey), zap.Error(err))
				return
			}
			saved = true
		})
	}
}

func replay(w http.ResponseWriter, stored idempotentResponse, hash, requestID string) {
	if stored.RequestHash != hash {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", requestID)
		return
	}
	if stored.InFlight {
		api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is in progress", requestID)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

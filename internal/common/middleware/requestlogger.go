// Package middleware provides HTTP middleware for the loopback callback
// listener. It integrates with zerolog for structured logging and supports
// request tracing through unique request IDs.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// requestIdContextKey is a custom type for context key to store request IDs.
type requestIdContextKey string

const requestIdKey = requestIdContextKey("requestId")

// RequestLogger creates middleware that logs incoming requests and adds a
// unique request ID to the request context. The callback listener only ever
// receives the provider redirect, so logging stays at debug level and query
// strings are never logged: they carry the authorization code.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := newRequestId()
		ctx = context.WithValue(ctx, requestIdKey, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		requestFields := map[string]any{
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
		}
		log.Ctx(ctx).Debug().Fields(requestFields).Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Debug().
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newRequestId generates a unique request identifier. It attempts to create a UUID first,
// falling back to a timestamp-based ID if UUID generation fails.
func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}

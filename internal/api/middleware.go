package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/auth"
)

const (
	apiSecretHeader       = "X-Api-Secret"
	schedulerSecretHeader = "X-Scheduler-Secret"
)

// SecretHeaderMiddleware requires the shared secret in the given header.
func SecretHeaderMiddleware(header, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.SecretEqual(r.Header.Get(header), secret) {
				writeError(w, http.StatusUnauthorized, "missing or invalid "+header+" header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerSecretMiddleware requires "Authorization: Bearer <shared secret>".
func BearerSecretMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || !auth.SecretEqual(token, secret) {
				writeError(w, http.StatusUnauthorized, "invalid bearer credential")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalRoleMiddleware lets requests without a bearer token through (the
// shared-secret check already ran); when a token is present its role claim
// must be authorized.
func OptionalRoleMiddleware(verifier *auth.RoleVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if ok {
				switch err := verifier.Verify(token); {
				case errors.Is(err, auth.ErrForbiddenRole):
					writeError(w, http.StatusForbidden, "role not authorized")
					return
				case err != nil:
					writeError(w, http.StatusUnauthorized, "invalid bearer token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", false
	}
	return token, true
}

func LoggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

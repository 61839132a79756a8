package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kaptam/internal/domain"
	"kaptam/internal/metrics"
	"kaptam/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type ctxKey int

const claimsKey ctxKey = iota

// requestLogger logs one line per request and records the HTTP metrics.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			metrics.ObserveHTTP(route, strconv.Itoa(status), dur.Seconds())

			ev := logger.Info()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("remote", clientIP(r)).
				Dur("duration", dur).
				Msg("http request")
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// rateLimit caps requests per client IP. Limiter errors let the request through.
func rateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.CheckRateLimit(r.Context(), clientIP(r), limit, window)
			if err != nil {
				logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.IncRateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenVerifier validates admin bearer tokens.
type TokenVerifier interface {
	VerifyToken(raw string) (*service.AdminClaims, error)
}

// requireAdmin rejects requests without a valid admin token.
func requireAdmin(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				writeError(w, http.StatusUnauthorized, msgNoAuthHeader)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func adminFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey).(*service.AdminClaims); ok {
		return c.Subject
	}
	return ""
}

func bodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoverer turns panics into the standard JSON 500.
func recoverer(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Interface("panic", rec).
						Str("request_id", middleware.GetReqID(r.Context())).
						Str("path", r.URL.Path).
						Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, msgInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

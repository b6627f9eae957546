package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/audit"
	"github.com/prudhvinik1/numberwatch/internal/services"
)

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *services.OperatorClaims {
	claims, _ := ctx.Value(claimsKey{}).(*services.OperatorClaims)
	return claims
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// authenticate requires a valid operator bearer token and places the operator
// and client address on the request context. Rejections are audited.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ctx := audit.WithClientIP(r.Context(), ip)

		token := bearerToken(r)
		if token == "" {
			h.audit.Record(ctx, nil, "auth.reject", r.URL.Path, false, ip, map[string]any{"reason": "missing token"})
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.auth.Authenticate(ctx, token)
		if err != nil {
			h.audit.Record(ctx, nil, "auth.reject", r.URL.Path, false, ip, map[string]any{"reason": err.Error()})
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx = audit.WithActor(ctx, claims.OperatorID)
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// auditRequests records every privileged request with its outcome.
func (h *Handler) auditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		action := r.Method
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			action = r.Method + " " + rctx.RoutePattern()
		}
		ctx := r.Context()
		h.audit.Record(ctx, audit.ActorFromContext(ctx), action, r.URL.Path, status < 400,
			audit.ClientIPFromContext(ctx), map[string]any{"status": status})
	})
}

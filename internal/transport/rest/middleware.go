package rest

import (
	"context"
	"net/http"

	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/web"
)

type claimsKey struct{}

func claimsFrom(ctx context.Context) auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(auth.Claims)
	return claims
}

// requireSession rejects requests made without a signed-in session.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.svc.Session.Claims()
		if !ok {
			web.RespondError(w, h.logger, http.StatusUnauthorized, "Sign in required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (h *Handler) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !claimsFrom(r.Context()).HasRole(role) {
				h.logger.WarnContext(r.Context(), "Access denied", "path", r.URL.Path, "role", role)
				web.RespondError(w, h.logger, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

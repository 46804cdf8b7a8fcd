package server

import (
	"errors"
	"log/slog"
	"net/http"

	"bookshop/pkg/domain"
	"bookshop/services/shop/internal/app"
)

// verifyToken admits requests carrying a valid bearer credential and stores
// its claims in the request context.
func (s *Server) verifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "shop.token.verify", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized access")
			return
		}
		claims, err := s.app.Authenticate(token)
		if err != nil {
			s.audit(r, "shop.token.verify", "fail", "reason", accessReason(err, "invalid_token"))
			writeError(w, http.StatusUnauthorized, "unauthorized access")
			return
		}
		s.audit(r, "shop.token.verify", "success", "email", claims.Email)
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// verifyAdmin must run after verifyToken. It admits only callers whose user
// record holds the admin role.
func (s *Server) verifyAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			slog.Error("verifyAdmin reached without verified claims", "path", r.URL.Path)
			s.audit(r, "shop.admin.authorize", "fail", "reason", "missing_identity")
			writeError(w, http.StatusUnauthorized, "unauthorized access")
			return
		}
		user, err := s.app.RequireRole(r.Context(), claims, domain.RoleAdmin)
		if err != nil {
			var accessErr *app.AccessError
			if errors.As(err, &accessErr) {
				s.audit(r, "shop.admin.authorize", "fail", "email", claims.Email, "reason", accessErr.Reason)
			} else {
				s.audit(r, "shop.admin.authorize", "error", "email", claims.Email, "reason", "lookup_failed")
			}
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "shop.admin.authorize", "success", "user_id", user.ID)
		next.ServeHTTP(w, r)
	})
}

func accessReason(err error, fallback string) string {
	var accessErr *app.AccessError
	if errors.As(err, &accessErr) {
		return accessErr.Reason
	}
	return fallback
}

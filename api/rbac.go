package api

import (
	"context"
	"net/http"
	"time"
)

// rbacLookupTimeout bounds the storage round trips a permission check is
// allowed before it fails closed.
const rbacLookupTimeout = 3 * time.Second

// authMiddleware validates the JWT and stamps the caller's identity onto
// the request context. Requests without a valid, unrevoked token are
// rejected.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractTokenFromRequest(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
			return
		}

		claims, err := validateJWT(tokenString, a.config)
		if err != nil {
			a.logger.Warnf("Invalid JWT token: %v", err)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil, a.logger)
			return
		}
		if a.revocations.IsRevoked(claims.ID) {
			writeError(w, http.StatusUnauthorized, "Token has been revoked", nil, a.logger)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token subject", nil, a.logger)
			return
		}

		ctx := WithUsername(r.Context(), claims.Username)
		ctx = WithUserID(ctx, userID)
		ctx = WithRoles(ctx, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission gates a handler behind a permission check. The check
// fails closed: missing identity, storage errors and timeouts all deny.
func (a *API) requirePermission(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), rbacLookupTimeout)
		defer cancel()

		allowed, err := a.authz.CheckPermission(ctx, userID, permission)
		if err != nil {
			a.logger.Errorf("Permission check failed for user %d on %s: %v", userID, permission, err)
			writeError(w, http.StatusInternalServerError, "Permission check failed", err, a.logger)
			return
		}
		if !allowed {
			a.logger.Warnf("User %d lacks permission %s for %s %s", userID, permission, r.Method, r.URL.Path)
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil, a.logger)
			return
		}

		next.ServeHTTP(w, r)
	}
}

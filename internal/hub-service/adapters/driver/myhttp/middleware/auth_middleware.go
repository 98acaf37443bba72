package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"fleet-dash/internal/hub-service/core/domain/model"
)

type claimsKey struct{}

type TokenValidator interface {
	Validate(token string) (model.Claims, error)
}

type AuthMiddleware struct {
	auth  TokenValidator
	roles []string
}

// NewAuthMiddleware admits requests whose bearer token carries one of roles.
func NewAuthMiddleware(auth TokenValidator, roles ...string) *AuthMiddleware {
	return &AuthMiddleware{
		auth:  auth,
		roles: roles,
	}
}

func (am *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := am.auth.Validate(r.Header.Get("Authorization"))
		if err != nil {
			unauthorized(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !am.allowed(claims.Role) {
			unauthorized(w, http.StatusForbidden, "role "+claims.Role+" is not allowed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (am *AuthMiddleware) allowed(role string) bool {
	if len(am.roles) == 0 {
		return true
	}
	for _, r := range am.roles {
		if r == role {
			return true
		}
	}
	return false
}

// ClaimsFrom returns the claims stored by Wrap.
func ClaimsFrom(ctx context.Context) (model.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(model.Claims)
	return c, ok
}

func unauthorized(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   msg,
		"code":    code,
		"message": "Authentication failed.",
	})
}

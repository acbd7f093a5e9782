package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medshift/appointment-booking/internal/booking"
)

// Identity is the (role, subject) pair extracted from a bearer token. The
// identity provider that mints the tokens is out of scope; this layer only
// consumes them.
type Identity struct {
	Role      booking.Role
	SubjectID string
}

const identityKey contextKey = "identity"

// GetIdentity retrieves the caller identity from context. The zero value
// means the request did not pass the auth middleware.
func GetIdentity(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// RequireAuth validates the Authorization bearer token and stores the
// caller's identity in the request context. Tokens carry the role in a
// "role" claim and the subject id in the standard "sub" claim.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization bearer token required")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			sub, _ := claims.GetSubject()
			roleClaim, _ := claims["role"].(string)
			role, err := booking.ParseRole(roleClaim)
			if err != nil || sub == "" {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is missing role or subject")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, Identity{Role: role, SubjectID: sub})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

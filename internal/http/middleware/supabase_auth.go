package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const memberClaimsKey contextKey = "memberClaims"

// MemberClaims are the fields read from a Supabase access token.
type MemberClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SupabaseJWT validates HS256 access tokens signed with the project's JWT
// secret. The token subject is the member's profile id.
func SupabaseJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, "member auth not configured")
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, "missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")

			claims := &MemberClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeAuthError(w, "invalid token")
				return
			}
			if strings.TrimSpace(claims.Subject) == "" {
				writeAuthError(w, "token has no subject")
				return
			}

			ctx := context.WithValue(r.Context(), memberClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MemberClaimsFromContext returns the validated claims if present.
func MemberClaimsFromContext(ctx context.Context) (*MemberClaims, bool) {
	claims, ok := ctx.Value(memberClaimsKey).(*MemberClaims)
	return claims, ok
}

// ProfileIDFromContext returns the authenticated member's profile id.
func ProfileIDFromContext(ctx context.Context) string {
	if claims, ok := MemberClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"unauthorized"}`))
}

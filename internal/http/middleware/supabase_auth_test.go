package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
}

func TestSupabaseJWTRejects(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"missing secret", "", "Bearer " + signedMemberToken(t, "secret", "p1", time.Minute)},
		{"missing header", "secret", ""},
		{"wrong scheme", "secret", "Basic abc"},
		{"wrong signature", "secret", "Bearer " + signedMemberToken(t, "wrong", "p1", time.Minute)},
		{"expired", "secret", "Bearer " + signedMemberToken(t, "secret", "p1", -time.Minute)},
		{"no subject", "secret", "Bearer " + signedMemberToken(t, "secret", "", time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			SupabaseJWT(tt.secret)(noopHandler()).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected json error, got %q", ct)
			}
		})
	}
}

func TestSupabaseJWTValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+signedMemberToken(t, "secret", "profile-123", 5*time.Minute))
	rec := httptest.NewRecorder()

	called := false
	SupabaseJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := ProfileIDFromContext(r.Context()); got != "profile-123" {
			t.Fatalf("expected profile id in context, got %q", got)
		}
		claims, ok := MemberClaimsFromContext(r.Context())
		if !ok || claims.Email != "sam@example.com" {
			t.Fatalf("expected member claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestProfileIDFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ProfileIDFromContext(req.Context()); got != "" {
		t.Fatalf("expected empty profile id, got %q", got)
	}
}

func signedMemberToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := MemberClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email: "sam@example.com",
		Role:  "authenticated",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

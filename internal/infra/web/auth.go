package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Owner identity =====

// Authentication is optional: anonymous requests create unowned jobs that
// anyone holding the ID can poll. A valid bearer token scopes every job
// the request creates or reads to its subject.

type ownerKey struct{}

type OwnerClaims struct {
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret)}
}

// Identify resolves the optional owner and stores it on the context. A
// present but invalid token is rejected rather than downgraded to
// anonymous.
func (a *AuthManager) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if hdr == "" || len(a.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		claims, err := a.parse(strings.TrimSpace(hdr[7:]))
		if err != nil || claims.Subject == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthManager) parse(tok string) (*OwnerClaims, error) {
	claims := &OwnerClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ownerFrom returns the authenticated principal, or nil for anonymous
// requests.
func ownerFrom(ctx context.Context) *string {
	if sub, ok := ctx.Value(ownerKey{}).(string); ok && sub != "" {
		return &sub
	}
	return nil
}

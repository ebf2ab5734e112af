package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/astroCoder-3409/SSS-Backend/internal/identity"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

// fakeVerifier accepts exactly one token.
type fakeVerifier struct {
	token  string
	claims identity.Claims
}

func (f *fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*identity.Claims, error) {
	if idToken != f.token {
		return nil, errors.New("invalid token")
	}
	c := f.claims
	return &c, nil
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *store.Store) {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if _, err := db.Migrate("test"); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	verifier := &fakeVerifier{
		token:  "good-token",
		claims: identity.Claims{UserID: "uid-1", Email: "user@example.com", FullName: "Test User"},
	}
	return NewAuthenticator(verifier, db, zerolog.Nop()), db
}

func TestRequireRejectsMissingOrInvalidToken(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run")
	})

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"bad token", "Bearer bad-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.Require(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireUpsertsUserAndSetsContext(t *testing.T) {
	auth, db := newTestAuthenticator(t)

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	auth.Require(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "uid-1" {
		t.Errorf("context user id = %q, want uid-1", gotUserID)
	}

	user, err := db.GetUser(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("user was not created from claims: %v", err)
	}
	if user.Email != "user@example.com" || user.FullName != "Test User" {
		t.Errorf("user = %q %q", user.Email, user.FullName)
	}
}

func TestRequireRefreshesClaimsOnEveryRequest(t *testing.T) {
	auth, db := newTestAuthenticator(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	send := func() {
		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		auth.Require(next).ServeHTTP(httptest.NewRecorder(), req)
	}

	send()

	// The provider-side profile changes between requests.
	auth.verifier.(*fakeVerifier).claims.Email = "renamed@example.com"
	send()

	user, err := db.GetUser(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Email != "renamed@example.com" {
		t.Errorf("email not refreshed, got %q", user.Email)
	}
}

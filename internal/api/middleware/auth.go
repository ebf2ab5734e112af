package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/astroCoder-3409/SSS-Backend/internal/identity"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

// Authenticator verifies bearer identity tokens and keeps the local user row
// in step with the token claims.
type Authenticator struct {
	verifier identity.Verifier
	db       *store.Store
	log      zerolog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(verifier identity.Verifier, db *store.Store, log zerolog.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, db: db, log: log}
}

// Require rejects requests without a verifiable bearer token. On success the
// local user is created from the token claims (first verification) or its
// email and name refreshed (every subsequent one), and the user id is placed
// on the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			WriteError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := a.verifier.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			a.log.Warn().Err(err).Msg("Identity token verification failed")
			WriteError(w, http.StatusUnauthorized, "Invalid identity token")
			return
		}

		if _, err := a.db.UpsertUserFromClaims(r.Context(), claims.UserID, claims.Email, claims.FullName); err != nil {
			a.log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to upsert user from claims")
			WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id from the request context, or ""
// when the request did not pass through Require.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

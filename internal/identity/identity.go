// Package identity verifies bearer identity tokens against Firebase and
// exposes the verified claims the rest of the application needs.
package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Claims are the token claims the backend cares about.
type Claims struct {
	UserID   string
	Email    string
	FullName string
}

// Verifier checks a raw ID token and returns its claims.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Claims, error)
}

// FirebaseVerifier verifies tokens with the Firebase Admin SDK.
type FirebaseVerifier struct {
	auth *auth.Client
}

// NewFirebaseVerifier initializes the Firebase app and its auth client.
// credentialsFile may be empty, in which case application default credentials
// are used.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewFirebaseVerifier: creating app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewFirebaseVerifier: creating auth client: %w", err)
	}

	return &FirebaseVerifier{auth: client}, nil
}

// VerifyIDToken implements Verifier.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Claims, error) {
	tok, err := v.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("VerifyIDToken: %w", err)
	}

	return &Claims{
		UserID:   tok.UID,
		Email:    stringClaim(tok.Claims, "email"),
		FullName: stringClaim(tok.Claims, "name"),
	}, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

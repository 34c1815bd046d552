package auth

import (
	"net/http"
	"strings"
)

// BearerAuthenticator validates "Authorization: Bearer <secret>" headers.
type BearerAuthenticator struct {
	digest secretDigest
}

// NewBearer creates a bearer token authenticator for the gateway secret.
func NewBearer(secret string) *BearerAuthenticator {
	return &BearerAuthenticator{digest: digest(secret)}
}

// Authenticate implements Authenticator.
func (a *BearerAuthenticator) Authenticate(r *http.Request) Result {
	raw := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		return Result{Method: TypeNone}
	}
	return Result{
		Authenticated: a.digest.matches(token),
		Method:        TypeBearer,
	}
}

// Type implements Authenticator.
func (a *BearerAuthenticator) Type() Type {
	return TypeBearer
}

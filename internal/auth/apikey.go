package auth

import "net/http"

// APIKeyAuthenticator validates the "x-api-key" header some SDKs send
// instead of a bearer token.
type APIKeyAuthenticator struct {
	digest secretDigest
}

// NewAPIKey creates an x-api-key authenticator for the gateway secret.
func NewAPIKey(secret string) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{digest: digest(secret)}
}

// Authenticate implements Authenticator.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) Result {
	presented := r.Header.Get("x-api-key")
	if presented == "" {
		return Result{Method: TypeNone}
	}
	return Result{
		Authenticated: a.digest.matches(presented),
		Method:        TypeAPIKey,
	}
}

// Type implements Authenticator.
func (a *APIKeyAuthenticator) Type() Type {
	return TypeAPIKey
}

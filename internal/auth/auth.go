// Package auth validates the gateway credential on inbound requests.
//
// Clients authenticate to the proxy with a single shared gateway secret,
// presented either as a bearer token or an x-api-key header. The pooled
// upstream keys are never accepted here; they belong to the dispatcher.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// Type identifies how a credential was presented.
type Type string

// Supported credential carriers.
const (
	TypeBearer Type = "bearer"
	TypeAPIKey Type = "api_key"
	TypeNone   Type = "none"
)

// Result is the outcome of an authentication check.
type Result struct {
	// Authenticated is true when the presented credential matched.
	Authenticated bool
	// Method is the carrier that matched, TypeNone otherwise.
	Method Type
}

// Authenticator checks one credential carrier on a request.
type Authenticator interface {
	// Authenticate inspects the request and reports whether its credential
	// matches. A request without this carrier at all is simply not
	// authenticated; the chain moves on.
	Authenticate(r *http.Request) Result

	// Type names the carrier this authenticator handles.
	Type() Type
}

// secretDigest precomputes the SHA-256 of the configured secret so request
// handling never touches the plaintext.
type secretDigest [sha256.Size]byte

func digest(secret string) secretDigest {
	return sha256.Sum256([]byte(secret))
}

// matches compares a presented credential against the digest in constant
// time.
func (d secretDigest) matches(presented string) bool {
	p := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(d[:], p[:]) == 1
}

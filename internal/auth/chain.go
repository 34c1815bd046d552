package auth

import "net/http"

// Chain tries authenticators in order and accepts the first match. A
// request that presents a carrier with the wrong secret is rejected even
// if a later carrier would have matched.
type Chain struct {
	authenticators []Authenticator
}

// NewChain builds a chain over the given authenticators.
func NewChain(authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators}
}

// NewGatewayChain builds the standard gateway chain for a single shared
// secret: bearer token first, x-api-key fallback.
func NewGatewayChain(secret string) *Chain {
	return NewChain(NewBearer(secret), NewAPIKey(secret))
}

// Authenticate implements Authenticator.
func (c *Chain) Authenticate(r *http.Request) Result {
	for _, a := range c.authenticators {
		res := a.Authenticate(r)
		if res.Method == TypeNone {
			continue
		}
		return res
	}
	return Result{Method: TypeNone}
}

// Type implements Authenticator.
func (c *Chain) Type() Type {
	if len(c.authenticators) == 1 {
		return c.authenticators[0].Type()
	}
	return "chain"
}

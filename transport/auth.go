package transport

import (
	"context"
	"errors"
)

// Identity is the authenticated principal behind an observer connection.
type Identity struct {
	Subject string
}

// ErrAuthRejected means the presented token did not verify.
var ErrAuthRejected = errors.New("transport: auth rejected")

// TokenVerifier is the external authentication capability the transport
// consumes. Token issuance and verification internals live elsewhere.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier accepts tokens from a fixed allow-list. It backs small
// deployments and tests; production wiring plugs in a real verifier.
type StaticVerifier struct {
	tokens map[string]struct{}
}

// NewStaticVerifier builds a verifier over the given tokens.
func NewStaticVerifier(tokens []string) *StaticVerifier {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			m[t] = struct{}{}
		}
	}
	return &StaticVerifier{tokens: m}
}

// Verify accepts the token iff it is on the allow-list.
func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if _, ok := v.tokens[token]; !ok {
		return Identity{}, ErrAuthRejected
	}
	return Identity{Subject: "static"}, nil
}

// AllowAllVerifier accepts every connection. Development use only.
type AllowAllVerifier struct{}

// Verify always succeeds.
func (AllowAllVerifier) Verify(_ context.Context, _ string) (Identity, error) {
	return Identity{Subject: "anonymous"}, nil
}

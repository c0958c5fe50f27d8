package auth

import (
	"context"
	"crypto/subtle"
	"slices"
)

// bearerAuthenticator wraps a user-provided validation function.
type bearerAuthenticator struct {
	validateFunc func(token string) (identity string, err error)
}

// BearerAuth creates an Authenticator from a validation function.
// This is the simplest way to add authentication.
//
// Example:
//
//	a := auth.BearerAuth(func(token string) (string, error) {
//	    user, err := validateWithMyBackend(token)
//	    if err != nil {
//	        return "", err
//	    }
//	    return user.ID, nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return &bearerAuthenticator{
		validateFunc: validateFunc,
	}
}

// Authenticate implements Authenticator for bearerAuthenticator.
func (b *bearerAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return b.validateFunc(token)
}

// Token is a static token entry.
type Token struct {
	// Token is the bearer token value.
	Token string `yaml:"token"`

	// Identity is reported for requests presenting Token.
	Identity string `yaml:"identity"`

	// Sources the identity may read.
	// OPTIONAL: all sources when empty.
	Sources []string `yaml:"sources"`
}

// staticTokens authenticates against a fixed token list.
type staticTokens struct {
	tokens []Token
}

// StaticTokens returns an Authenticator accepting the listed tokens. It also
// implements SourceAuthorizer using each token's Sources list.
func StaticTokens(tokens []Token) Authenticator {
	return &staticTokens{tokens: slices.Clone(tokens)}
}

func (s *staticTokens) lookup(token string) (Token, bool) {
	for _, t := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) == 1 {
			return t, true
		}
	}
	return Token{}, false
}

// Authenticate implements Authenticator.
func (s *staticTokens) Authenticate(ctx context.Context, token string) (string, error) {
	t, ok := s.lookup(token)
	if !ok {
		return "", ErrUnauthenticated
	}
	return t.Identity, nil
}

// AuthorizeSource implements SourceAuthorizer.
func (s *staticTokens) AuthorizeSource(ctx context.Context, source string) error {
	identity := IdentityFromContext(ctx)
	for _, t := range s.tokens {
		if t.Identity != identity {
			continue
		}
		if len(t.Sources) == 0 || slices.Contains(t.Sources, source) {
			return nil
		}
	}
	return ErrPermissionDenied
}

// Package auth provides authentication for grid source hosts.
//
// The same Authenticator guards the HTTP host (Middleware) and the Arrow
// Flight host (UnaryServerInterceptor, StreamServerInterceptor). Bearer
// tokens are read from the "Authorization" header in both cases.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hugr-lab/gridsource-go/internal/recovery"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when no bearer token was presented.
	ErrTokenIsEmpty = errors.New("authorization token is empty")

	// ErrUnauthenticated is returned when authentication fails.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied is returned when an authenticated identity may not
	// read a source.
	ErrPermissionDenied = errors.New("permission denied")
)

// Authenticator validates bearer tokens and returns user identity.
// Implementations MUST be goroutine-safe.
type Authenticator interface {
	// Authenticate validates a bearer token and returns user identity.
	// Returns error if token is invalid or expired.
	// Context allows timeout for auth backend calls.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// SourceAuthorizer is an optional interface that Authenticator implementations
// can also implement to restrict which sources an identity may read.
//
// Hosts call AuthorizeSource after a successful Authenticate, with the
// identity already in ctx, before serving options or rows of a source.
type SourceAuthorizer interface {
	AuthorizeSource(ctx context.Context, source string) error
}

// noAuthenticator is an Authenticator that allows all requests.
type noAuthenticator struct{}

// NoAuth returns an Authenticator that allows all requests.
// Useful for development/testing. DO NOT use in production.
func NoAuth() Authenticator {
	return &noAuthenticator{}
}

// Authenticate implements Authenticator for noAuthenticator.
// Always returns "anonymous" as the identity.
func (n *noAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return "anonymous", nil
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token of a "Bearer <token>" header.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}

// ValidateToken validates a bearer token using the provided Authenticator.
// Returns context with identity set or an error wrapping ErrUnauthenticated.
// A panicking authenticator is reported as a failed authentication.
func ValidateToken(ctx context.Context, token string, authenticator Authenticator) (context.Context, error) {
	if token == "" {
		return ctx, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenIsEmpty)
	}

	identity, err := recovery.RecoverToValue(nil, "Authenticate", func() (string, error) {
		return authenticator.Authenticate(ctx, token)
	})
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return WithIdentity(ctx, identity), nil
}

// AuthorizeSource checks source access when authenticator implements
// SourceAuthorizer. Returns nil otherwise.
func AuthorizeSource(ctx context.Context, authenticator Authenticator, source string) error {
	az, ok := authenticator.(SourceAuthorizer)
	if !ok {
		return nil
	}
	err := recovery.RecoverToError(nil, "AuthorizeSource", func() error {
		return az.AuthorizeSource(ctx, source)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, source, err)
	}
	return nil
}

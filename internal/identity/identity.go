// Package identity defines the identity provider contract the session store
// consumes, plus the two implementations AlmaHub ships: a local in-process
// provider and a Firebase-backed one.
package identity

import (
	"context"
	"errors"
)

// Identity describes an authenticated account as the provider reports it.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

var (
	ErrAccountExists  = errors.New("account already exists")
	ErrWeakCredential = errors.New("password does not meet requirements")
	ErrNotFound       = errors.New("user not found")
	ErrBadCredential  = errors.New("invalid email or password")
)

// SessionCallback receives the current identity, or nil when signed out.
type SessionCallback func(*Identity)

// Provider is the identity service contract. OnSessionChange invokes the
// callback once immediately with the current session (possibly nil) and again
// after every sign-in and sign-out.
type Provider interface {
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	OnSessionChange(cb SessionCallback) (cancel func())
}

// TokenVerifier validates a bearer token and returns the account it belongs
// to. The HTTP middleware depends on this rather than on a concrete provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uid, email string, err error)
}

// TokenIssuer mints bearer tokens for accounts. Only providers that own their
// token format implement it; Firebase clients obtain ID tokens from Firebase
// directly.
type TokenIssuer interface {
	Token(uid string) (string, error)
}

// Package identity resolves guest buyers against the external identity
// provider and mirrors them into the local users table.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned when the provider rejects an
	// email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when an account for the email already
	// exists at the provider.
	ErrAccountExists = errors.New("account already exists")
)

// Session is the result of a password grant.
type Session struct {
	AccessToken string
	Subject     string
}

// Provider is the subset of the identity provider used for guest checkout.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	// GetSubject returns the canonical subject id behind an access token.
	GetSubject(ctx context.Context, accessToken string) (string, error)
	// CreateGuestAccount creates a guest-tier account whose email is
	// confirmed administratively, so no confirmation mail is sent.
	CreateGuestAccount(ctx context.Context, email, password string) (string, error)
}

const GuestTier = "guest"

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-svc/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LocalProvider is a Postgres-backed Provider for development setups
// without an external auth server. Tokens it mints are accepted by
// middleware.OptionalAuth when both share the JWT secret.
type LocalProvider struct {
	db       *sql.DB
	secret   []byte
	tokenTTL time.Duration
}

func NewLocalProvider(db *sql.DB, secret []byte) *LocalProvider {
	return &LocalProvider{db: db, secret: secret, tokenTTL: 24 * time.Hour}
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	var subject, hash string
	var confirmed bool
	err := p.db.QueryRowContext(ctx,
		"SELECT subject, password_hash, email_confirmed FROM identity_accounts WHERE email = $1",
		strings.ToLower(email),
	).Scan(&subject, &hash, &confirmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load identity account: %w", err)
	}

	if !confirmed {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": strings.ToLower(email),
		"exp":   time.Now().Add(p.tokenTTL).Unix(),
		"iat":   time.Now().Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{AccessToken: signed, Subject: subject}, nil
}

func (p *LocalProvider) GetSubject(_ context.Context, accessToken string) (string, error) {
	principal, err := middleware.ParseToken(accessToken, p.secret)
	if err != nil {
		return "", err
	}
	return principal.Subject, nil
}

func (p *LocalProvider) CreateGuestAccount(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	var subject string
	err = p.db.QueryRowContext(ctx,
		"INSERT INTO identity_accounts (subject, email, password_hash, tier, email_confirmed) "+
			"VALUES ($1, $2, $3, $4, TRUE) ON CONFLICT (email) DO NOTHING RETURNING subject",
		uuid.NewString(), strings.ToLower(email), string(hash), GuestTier,
	).Scan(&subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrAccountExists
		}
		return "", fmt.Errorf("failed to create identity account: %w", err)
	}
	return subject, nil
}

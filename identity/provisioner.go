package identity

import (
	"context"
	"errors"
	"strings"

	"checkout-svc/apperr"
	"checkout-svc/models"
	"checkout-svc/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserStore is the local users table as seen by the provisioner.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	LinkUserSubject(ctx context.Context, userID, subject string) (*models.User, error)
}

// Provisioner turns guest checkout credentials into a local buyer.
type Provisioner struct {
	provider Provider
	users    UserStore
	logger   *zap.Logger
}

func NewProvisioner(provider Provider, users UserStore, logger *zap.Logger) *Provisioner {
	return &Provisioner{provider: provider, users: users, logger: logger}
}

// Provision returns the local user for email, creating the provider
// account and local mirror when neither exists. A local row is written
// only after the provider account has authenticated.
func (p *Provisioner) Provision(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are both required for guest checkout")
	}

	existing, err := p.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return p.signIn(ctx, email, password, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeGuestCheckoutFailed, "Guest checkout failed", err)
	}

	subject, err := p.provider.CreateGuestAccount(ctx, email, password)
	if errors.Is(err, ErrAccountExists) {
		// Retried request, or a provider account with no local mirror.
		p.logger.Info("Identity account already exists, authenticating instead", zap.String("email", email))
		return p.signIn(ctx, email, password, nil)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeAccountCreationFailed, "Could not create guest account", err)
	}

	if _, err := p.provider.Authenticate(ctx, email, password); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeAccountCreationFailed, "Could not create guest account", err)
	}

	user, err := p.users.CreateUser(ctx, &models.User{
		ID:          uuid.NewString(),
		Email:       email,
		AuthSubject: subject,
		Role:        models.RoleGuest,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeGuestCheckoutFailed, "Guest checkout failed", err)
	}

	p.logger.Info("Guest account provisioned", zap.String("user_id", user.ID))
	return user, nil
}

// signIn authenticates and resolves the local user by canonical subject.
// local is the row found by email, if any.
func (p *Provisioner) signIn(ctx context.Context, email, password string, local *models.User) (*models.User, error) {
	session, err := p.provider.Authenticate(ctx, email, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, apperr.Wrap(apperr.KindUnauthorized, apperr.CodeAuthFailed, "Invalid email or password", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeGuestCheckoutFailed, "Guest checkout failed", err)
	}

	subject, err := p.provider.GetSubject(ctx, session.AccessToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeGuestCheckoutFailed, "Guest checkout failed", err)
	}

	user, err := p.users.GetUserBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeGuestCheckoutFailed, "Guest checkout failed", err)
	}

	if local != nil {
		user, err = p.users.LinkUserSubject(ctx, local.ID, subject)
	} else {
		user, err = p.users.CreateUser(ctx, &models.User{
			ID:          uuid.NewString(),
			Email:       email,
			AuthSubject: subject,
			Role:        models.RoleGuest,
		})
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, apperr.CodeGuestCheckoutFailed, "Guest checkout failed", err)
	}
	return user, nil
}

package identity

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLocalProvider_AuthenticateMintsVerifiableToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT subject, password_hash, email_confirmed FROM identity_accounts").
		WithArgs("guest@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"subject", "password_hash", "email_confirmed"}).
			AddRow("sub-1", string(hash), true))

	p := NewLocalProvider(db, []byte("secret"))
	session, err := p.Authenticate(context.Background(), "Guest@Example.com", "pw")
	require.NoError(t, err)

	subject, err := p.GetSubject(context.Background(), session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalProvider_AuthenticateUnknownEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT subject, password_hash, email_confirmed FROM identity_accounts").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = NewLocalProvider(db, []byte("secret")).Authenticate(context.Background(), "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalProvider_CreateGuestAccountCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO identity_accounts").
		WithArgs(sqlmock.AnyArg(), "taken@example.com", sqlmock.AnyArg(), GuestTier).
		WillReturnRows(sqlmock.NewRows([]string{"subject"}))

	_, err = NewLocalProvider(db, []byte("secret")).CreateGuestAccount(context.Background(), "taken@example.com", "pw")
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

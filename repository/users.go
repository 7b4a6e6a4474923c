package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-svc/models"
)

const userColumns = "id, email, auth_subject, role, member_id, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var memberID sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.AuthSubject, &u.Role, &memberID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.MemberID = nullString(memberID)
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER($1)",
		email,
	)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, err
}

func (s *Store) GetUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE auth_subject = $1",
		subject,
	)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user by subject: %w", err)
	}
	return u, err
}

// CreateUser inserts the local mirror of an identity-provider account.
// A concurrent insert for the same subject resolves to the existing row.
func (s *Store) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"INSERT INTO users (id, email, auth_subject, role) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (auth_subject) DO UPDATE SET email = EXCLUDED.email RETURNING "+userColumns,
		user.ID, user.Email, user.AuthSubject, user.Role,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (s *Store) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	var m models.Member
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, email, verification_status FROM members WHERE id = $1",
		memberID,
	).Scan(&m.ID, &m.UserID, &m.Email, &m.VerificationStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// LinkUserSubject repoints an existing local user at the provider's
// canonical subject.
func (s *Store) LinkUserSubject(ctx context.Context, userID, subject string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"UPDATE users SET auth_subject = $2 WHERE id = $1 RETURNING "+userColumns,
		userID, subject,
	)
	u, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to link user subject: %w", err)
	}
	return u, err
}

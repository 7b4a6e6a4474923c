package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSetting returns the raw value for key. ok is false when the key is
// absent or its value is NULL.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	var v sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT value FROM platform_settings WHERE key = $1", key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return v.String, v.Valid, nil
}

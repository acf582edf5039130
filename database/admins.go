package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"braintree-checkout-api/models"
)

// GetAdminUser returns an active admin and its bcrypt password hash.
func (c *Connection) GetAdminUser(ctx context.Context, username string) (*models.AdminUser, string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.AdminUser
	var passwordHash string
	var storeIDs []byte

	err := c.db.QueryRowContext(ctx, `
		SELECT username, email, password_hash, store_ids
		FROM admin_users
		WHERE username = ? AND is_active = 1
	`, username).Scan(&user.Username, &user.Email, &passwordHash, &storeIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("error getting admin user: %w", err)
	}

	if len(storeIDs) > 0 {
		if err := json.Unmarshal(storeIDs, &user.StoreIDs); err != nil {
			return nil, "", fmt.Errorf("error parsing admin store ids: %w", err)
		}
	}
	user.IsAdmin = true
	return &user, passwordHash, nil
}

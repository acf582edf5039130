package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"braintree-checkout-api/models"
)

// LatestAdminNotice returns the newest inbox entry, nil when the inbox is empty.
func (c *Connection) LatestAdminNotice(ctx context.Context) (*models.AdminNotice, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var notice models.AdminNotice
	err := c.db.QueryRowContext(ctx, `
		SELECT id, severity, title, description, created_at
		FROM admin_notices
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&notice.ID, &notice.Severity, &notice.Title, &notice.Description, &notice.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting latest admin notice: %w", err)
	}
	return &notice, nil
}

func (c *Connection) AddAdminNotice(ctx context.Context, notice *models.AdminNotice) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `
		INSERT INTO admin_notices (severity, title, description, created_at)
		VALUES (?, ?, ?, NOW())
	`, notice.Severity, notice.Title, notice.Description)
	if err != nil {
		return fmt.Errorf("error adding admin notice: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		notice.ID = id
	}
	return nil
}

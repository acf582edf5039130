package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StoreConfig returns the raw config rows of one scope keyed by path.
func (c *Connection) StoreConfig(ctx context.Context, storeID int64) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT path, value
		FROM store_config
		WHERE store_id = ? AND path LIKE 'payment/gene_braintree%'
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("error loading store config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var path string
		var value sql.NullString
		if err := rows.Scan(&path, &value); err != nil {
			return nil, fmt.Errorf("error scanning store config: %w", err)
		}
		if value.Valid {
			values[path] = value.String
		}
	}

	return values, rows.Err()
}

func (c *Connection) StoreName(ctx context.Context, storeID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var name string
	err := c.db.QueryRowContext(ctx, `SELECT name FROM stores WHERE id = ?`, storeID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error loading store name: %w", err)
	}
	return name, nil
}

// StoreBaseCurrency returns the currency a store keeps its totals in.
func (c *Connection) StoreBaseCurrency(ctx context.Context, storeID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var code string
	err := c.db.QueryRowContext(ctx, `SELECT base_currency_code FROM stores WHERE id = ?`, storeID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error loading store currency: %w", err)
	}
	return code, nil
}

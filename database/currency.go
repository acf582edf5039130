package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// GetCurrencyRate returns the rate converting one unit of from into to.
func (c *Connection) GetCurrencyRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rate decimal.Decimal
	err := c.db.QueryRowContext(ctx, `
		SELECT rate
		FROM currency_rates
		WHERE currency_from = ? AND currency_to = ?
	`, from, to).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("no rate for %s->%s: %w", from, to, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("error getting currency rate: %w", err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid rate %s for %s->%s", rate, from, to)
	}
	return rate, nil
}

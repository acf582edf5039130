package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

func (c *Connection) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var customer models.Customer
	var braintreeID sql.NullString
	err := c.db.QueryRowContext(ctx, `
		SELECT id, email, firstname, lastname, braintree_customer_id
		FROM customers
		WHERE id = ?
	`, customerID).Scan(
		&customer.ID,
		&customer.Email,
		&customer.FirstName,
		&customer.LastName,
		&braintreeID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting customer: %w", err)
	}
	customer.BraintreeCustomerID = braintreeID.String
	return &customer, nil
}

// GetCustomerBraintreeID returns the stored vault id, "" when none is set.
func (c *Connection) GetCustomerBraintreeID(ctx context.Context, customerID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var braintreeID sql.NullString
	err := c.db.QueryRowContext(ctx, `SELECT braintree_customer_id FROM customers WHERE id = ?`, customerID).Scan(&braintreeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error getting braintree customer id: %w", err)
	}
	return braintreeID.String, nil
}

func (c *Connection) SetCustomerBraintreeID(ctx context.Context, customerID int64, braintreeID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `UPDATE customers SET braintree_customer_id = ? WHERE id = ?`, braintreeID, customerID)
	if err != nil {
		return fmt.Errorf("error saving braintree customer id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	logger.Info(ctx, "Stored braintree customer id", zap.Int64("customer_id", customerID))
	return nil
}

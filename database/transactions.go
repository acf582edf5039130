package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

type Transaction struct {
	tx *sql.Tx
}

func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// SaveOrder inserts the order header and its items and sets order.ID.
func (t *Transaction) SaveOrder(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	billing, err := encodeJSON(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}
	shipping, err := encodeJSON(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (
			increment_id, store_id, quote_id, base_currency_code, order_currency_code,
			base_grand_total, grand_total, shipping_method, shipping_amount,
			customer_id, customer_firstname, customer_lastname, customer_email, customer_is_guest,
			billing_address, shipping_address, state, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`

	result, err := t.tx.ExecContext(ctx, query,
		order.IncrementID,
		order.StoreID,
		order.QuoteID,
		order.BaseCurrencyCode,
		order.OrderCurrencyCode,
		order.BaseGrandTotal,
		order.GrandTotal,
		order.ShippingMethod,
		order.ShippingAmount,
		nullInt64(order.CustomerID),
		order.CustomerFirstname,
		order.CustomerLastname,
		order.CustomerEmail,
		order.CustomerIsGuest,
		billing,
		shipping,
		order.State,
		order.Status,
	)
	if err != nil {
		logger.Error(ctx, "Error saving order", err, zap.String("increment_id", order.IncrementID))
		return fmt.Errorf("failed to save order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read order id: %w", err)
	}
	order.ID = id

	for _, item := range order.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, sku, name, qty, price, row_total, is_virtual)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, order.ID, item.ProductID, item.SKU, item.Name, item.Qty, item.Price, item.RowTotal, item.IsVirtual)
		if err != nil {
			return fmt.Errorf("failed to save order item %s: %w", item.SKU, err)
		}
	}

	logger.Info(ctx, "Saved order",
		zap.Int64("order_id", order.ID),
		zap.String("increment_id", order.IncrementID),
		zap.Int("items", len(order.Items)))
	return nil
}

func (t *Transaction) SavePayment(ctx context.Context, payment *models.Payment) error {
	return savePayment(ctx, t.tx, payment)
}

// DeactivateQuote marks a converted quote inactive so it cannot be ordered twice.
func (t *Transaction) DeactivateQuote(ctx context.Context, quoteID int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := t.tx.ExecContext(ctx, `UPDATE quotes SET is_active = 0, updated_at = NOW() WHERE id = ?`, quoteID); err != nil {
		return fmt.Errorf("failed to deactivate quote %d: %w", quoteID, err)
	}
	return nil
}

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

func (c *Connection) GetQuote(ctx context.Context, quoteID int64) (*models.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var q models.Quote
	var reservedOrderID, shippingMethod, paymentMethod sql.NullString
	var customerID sql.NullInt64
	var billing, shipping []byte

	err := c.db.QueryRowContext(ctx, `
		SELECT id, store_id, is_active, reserved_order_id, customer_id, customer_email,
			customer_firstname, customer_lastname, base_currency_code, quote_currency_code,
			billing_address, shipping_address, shipping_method, subtotal, shipping_amount,
			grand_total, base_grand_total, payment_method, updated_at
		FROM quotes
		WHERE id = ?
	`, quoteID).Scan(
		&q.ID,
		&q.StoreID,
		&q.IsActive,
		&reservedOrderID,
		&customerID,
		&q.CustomerEmail,
		&q.CustomerFirstname,
		&q.CustomerLastname,
		&q.BaseCurrencyCode,
		&q.QuoteCurrencyCode,
		&billing,
		&shipping,
		&shippingMethod,
		&q.Subtotal,
		&q.ShippingAmount,
		&q.GrandTotal,
		&q.BaseGrandTotal,
		&paymentMethod,
		&q.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting quote: %w", err)
	}

	q.ReservedOrderID = reservedOrderID.String
	q.CustomerID = customerID.Int64
	q.ShippingMethod = shippingMethod.String
	q.PaymentMethod = paymentMethod.String
	if q.BillingAddress, err = decodeAddress(billing); err != nil {
		return nil, fmt.Errorf("error parsing quote billing address: %w", err)
	}
	if q.ShippingAddress, err = decodeAddress(shipping); err != nil {
		return nil, fmt.Errorf("error parsing quote shipping address: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, quote_id, product_id, sku, name, qty, price, is_virtual
		FROM quote_items
		WHERE quote_id = ?
		ORDER BY id ASC
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("error getting quote items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.QuoteItem
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.ProductID, &item.SKU, &item.Name, &item.Qty, &item.Price, &item.IsVirtual); err != nil {
			return nil, fmt.Errorf("error scanning quote item: %w", err)
		}
		q.Items = append(q.Items, item)
	}

	return &q, rows.Err()
}

// SaveQuote inserts or updates the quote header and replaces its items.
func (c *Connection) SaveQuote(ctx context.Context, q *models.Quote) error {
	billing, err := encodeJSON(q.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode quote billing address: %w", err)
	}
	shipping, err := encodeJSON(q.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode quote shipping address: %w", err)
	}

	return c.withTx(ctx, func(tx *Transaction) error {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		args := []interface{}{
			q.StoreID,
			q.IsActive,
			q.ReservedOrderID,
			nullInt64(q.CustomerID),
			q.CustomerEmail,
			q.CustomerFirstname,
			q.CustomerLastname,
			q.BaseCurrencyCode,
			q.QuoteCurrencyCode,
			billing,
			shipping,
			q.ShippingMethod,
			q.Subtotal,
			q.ShippingAmount,
			q.GrandTotal,
			q.BaseGrandTotal,
			q.PaymentMethod,
		}

		if q.ID == 0 {
			result, err := tx.tx.ExecContext(ctx, `
				INSERT INTO quotes (
					store_id, is_active, reserved_order_id, customer_id, customer_email,
					customer_firstname, customer_lastname, base_currency_code, quote_currency_code,
					billing_address, shipping_address, shipping_method, subtotal, shipping_amount,
					grand_total, base_grand_total, payment_method, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
			`, args...)
			if err != nil {
				return fmt.Errorf("failed to create quote: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read quote id: %w", err)
			}
			q.ID = id
		} else {
			_, err := tx.tx.ExecContext(ctx, `
				UPDATE quotes SET
					store_id = ?, is_active = ?, reserved_order_id = ?, customer_id = ?, customer_email = ?,
					customer_firstname = ?, customer_lastname = ?, base_currency_code = ?, quote_currency_code = ?,
					billing_address = ?, shipping_address = ?, shipping_method = ?, subtotal = ?, shipping_amount = ?,
					grand_total = ?, base_grand_total = ?, payment_method = ?, updated_at = NOW()
				WHERE id = ?
			`, append(args, q.ID)...)
			if err != nil {
				return fmt.Errorf("failed to update quote: %w", err)
			}
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM quote_items WHERE quote_id = ?`, q.ID); err != nil {
				return fmt.Errorf("failed to clear quote items: %w", err)
			}
		}

		for i := range q.Items {
			item := &q.Items[i]
			item.QuoteID = q.ID
			result, err := tx.tx.ExecContext(ctx, `
				INSERT INTO quote_items (quote_id, product_id, sku, name, qty, price, is_virtual)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, q.ID, item.ProductID, item.SKU, item.Name, item.Qty, item.Price, item.IsVirtual)
			if err != nil {
				return fmt.Errorf("failed to save quote item %s: %w", item.SKU, err)
			}
			if id, err := result.LastInsertId(); err == nil {
				item.ID = id
			}
		}

		logger.Debug(ctx, "Saved quote", zap.Int64("quote_id", q.ID), zap.Int("items", len(q.Items)))
		return nil
	})
}

func (c *Connection) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var product models.Product
	err := c.db.QueryRowContext(ctx, `
		SELECT id, sku, name, price, is_virtual, is_salable
		FROM products
		WHERE id = ?
	`, productID).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Price,
		&product.IsVirtual,
		&product.IsSalable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	return &product, nil
}

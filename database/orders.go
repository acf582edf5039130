package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

// incrementBase keeps increment ids nine digits long.
const incrementBase = 100000000

func (c *Connection) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var order models.Order
	var customerID sql.NullInt64
	var shippingMethod sql.NullString
	var billing, shipping []byte

	err := c.db.QueryRowContext(ctx, `
		SELECT id, increment_id, store_id, quote_id, base_currency_code, order_currency_code,
			base_grand_total, grand_total, shipping_method, shipping_amount,
			customer_id, customer_firstname, customer_lastname, customer_email, customer_is_guest,
			billing_address, shipping_address, state, status, created_at
		FROM orders
		WHERE id = ?
	`, orderID).Scan(
		&order.ID,
		&order.IncrementID,
		&order.StoreID,
		&order.QuoteID,
		&order.BaseCurrencyCode,
		&order.OrderCurrencyCode,
		&order.BaseGrandTotal,
		&order.GrandTotal,
		&shippingMethod,
		&order.ShippingAmount,
		&customerID,
		&order.CustomerFirstname,
		&order.CustomerLastname,
		&order.CustomerEmail,
		&order.CustomerIsGuest,
		&billing,
		&shipping,
		&order.State,
		&order.Status,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting order: %w", err)
	}

	order.CustomerID = customerID.Int64
	order.ShippingMethod = shippingMethod.String
	if order.BillingAddress, err = decodeAddress(billing); err != nil {
		return nil, fmt.Errorf("error parsing billing address: %w", err)
	}
	if order.ShippingAddress, err = decodeAddress(shipping); err != nil {
		return nil, fmt.Errorf("error parsing shipping address: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT product_id, sku, name, qty, price, row_total, is_virtual
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("error getting order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.Qty, &item.Price, &item.RowTotal, &item.IsVirtual); err != nil {
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return &order, rows.Err()
}

func (c *Connection) UpdateOrderState(ctx context.Context, orderID int64, state, status string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `UPDATE orders SET state = ?, status = ? WHERE id = ?`, state, status, orderID); err != nil {
		return fmt.Errorf("error updating order state: %w", err)
	}
	return nil
}

// GetPayment returns the payment attached to an order.
func (c *Connection) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p models.Payment
	var status string
	var ccTransID, lastTransID, transactionID sql.NullString
	var last4, ccType, expMonth, expYear sql.NullString
	var info []byte

	err := c.db.QueryRowContext(ctx, `
		SELECT id, order_id, method, status, cc_trans_id, last_trans_id, transaction_id, amount,
			is_transaction_closed, is_transaction_pending, is_fraud_detected,
			cc_last4, cc_type, cc_exp_month, cc_exp_year, additional_information
		FROM order_payments
		WHERE order_id = ?
	`, orderID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Method,
		&status,
		&ccTransID,
		&lastTransID,
		&transactionID,
		&p.Amount,
		&p.IsTransactionClosed,
		&p.IsTransactionPending,
		&p.IsFraudDetected,
		&last4,
		&ccType,
		&expMonth,
		&expYear,
		&info,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting payment: %w", err)
	}

	p.Status = models.PaymentStatus(status)
	p.CcTransID = ccTransID.String
	p.LastTransID = lastTransID.String
	p.TransactionID = transactionID.String
	p.CcLast4 = last4.String
	p.CcType = ccType.String
	p.CcExpMonth = expMonth.String
	p.CcExpYear = expYear.String

	if len(info) > 0 {
		if err := json.Unmarshal(info, &p.AdditionalInformation); err != nil {
			return nil, fmt.Errorf("error parsing payment additional information: %w", err)
		}
	}
	return &p, nil
}

func (c *Connection) SavePayment(ctx context.Context, payment *models.Payment) error {
	return savePayment(ctx, c.db, payment)
}

// savePayment inserts a new payment or updates an existing one by id.
func savePayment(ctx context.Context, exec execer, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	info, err := encodeJSON(p.AdditionalInformation)
	if err != nil {
		return fmt.Errorf("failed to encode payment additional information: %w", err)
	}

	args := []interface{}{
		p.Method,
		p.Status.String(),
		p.CcTransID,
		p.LastTransID,
		p.TransactionID,
		p.Amount,
		p.IsTransactionClosed,
		p.IsTransactionPending,
		p.IsFraudDetected,
		p.CcLast4,
		p.CcType,
		p.CcExpMonth,
		p.CcExpYear,
		info,
	}

	if p.ID > 0 {
		_, err := exec.ExecContext(ctx, `
			UPDATE order_payments SET
				method = ?, status = ?, cc_trans_id = ?, last_trans_id = ?, transaction_id = ?, amount = ?,
				is_transaction_closed = ?, is_transaction_pending = ?, is_fraud_detected = ?,
				cc_last4 = ?, cc_type = ?, cc_exp_month = ?, cc_exp_year = ?, additional_information = ?
			WHERE id = ?
		`, append(args, p.ID)...)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		return nil
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO order_payments (
			order_id, method, status, cc_trans_id, last_trans_id, transaction_id, amount,
			is_transaction_closed, is_transaction_pending, is_fraud_detected,
			cc_last4, cc_type, cc_exp_month, cc_exp_year, additional_information
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]interface{}{p.OrderID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read payment id: %w", err)
	}
	p.ID = id
	return nil
}

// ReserveOrderID allocates the next order increment id.
func (c *Connection) ReserveOrderID(ctx context.Context, storeID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `INSERT INTO order_sequence (store_id, created_at) VALUES (?, NOW())`, storeID)
	if err != nil {
		return "", fmt.Errorf("error reserving order id: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("error reading order sequence: %w", err)
	}
	return strconv.FormatInt(incrementBase+seq, 10), nil
}

// SubmitOrder persists a placed order with its payment and retires the quote
// in one transaction.
func (c *Connection) SubmitOrder(ctx context.Context, order *models.Order, payment *models.Payment) error {
	err := c.withTx(ctx, func(tx *Transaction) error {
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		payment.OrderID = order.ID
		if err := tx.SavePayment(ctx, payment); err != nil {
			return err
		}
		if order.QuoteID > 0 {
			return tx.DeactivateQuote(ctx, order.QuoteID)
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "Failed to submit order", err, zap.String("increment_id", order.IncrementID))
		return err
	}

	logger.Info(ctx, "Order submitted",
		zap.Int64("order_id", order.ID),
		zap.String("increment_id", order.IncrementID),
		zap.String("state", order.State))
	return nil
}

func decodeAddress(data []byte) (*models.Address, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var address models.Address
	if err := json.Unmarshal(data, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

package braintree

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
)

const TransactionTypeSale = "sale"

// Sale creates a sale transaction. A processor decline comes back as a result
// with Success=false, not as an error.
func (c *Client) Sale(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	if req.Type == "" {
		req.Type = TransactionTypeSale
	}

	logger.Info(ctx, "Sending Braintree sale",
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("merchant_account_id", req.MerchantAccountID),
		zap.Bool("has_nonce", req.PaymentMethodNonce != ""),
		zap.Bool("has_token", req.PaymentMethodToken != ""),
		zap.Bool("submit_for_settlement", req.Options != nil && req.Options.SubmitForSettlement))

	body, status, err := c.send(ctx, http.MethodPost, c.merchantPath("/transactions"),
		map[string]interface{}{"transaction": req})
	if err != nil {
		return nil, err
	}
	return decodeTransactionResult(body, status)
}

// SubmitForSettlement captures a previously authorized transaction.
func (c *Client) SubmitForSettlement(ctx context.Context, transactionID string, amount decimal.Decimal) (*TransactionResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}

	payload := map[string]interface{}{
		"transaction": map[string]interface{}{"amount": amount},
	}
	body, status, err := c.send(ctx, http.MethodPut,
		c.merchantPath("/transactions/%s/submit_for_settlement", url.PathEscape(transactionID)), payload)
	if err != nil {
		return nil, err
	}
	return decodeTransactionResult(body, status)
}

func (c *Client) FindTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if transactionID == "" {
		return nil, ErrNotFound
	}

	body, status, err := c.send(ctx, http.MethodGet,
		c.merchantPath("/transactions/%s", url.PathEscape(transactionID)), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status == http.StatusUnprocessableEntity {
		return nil, &GatewayError{StatusCode: status, Message: errorMessage(body)}
	}

	var env transactionEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.Transaction == nil {
		return nil, ErrNotFound
	}
	return env.Transaction, nil
}

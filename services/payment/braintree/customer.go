package braintree

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) FindCustomer(ctx context.Context, customerID string) (*Customer, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}

	body, status, err := c.send(ctx, http.MethodGet,
		c.merchantPath("/customers/%s", url.PathEscape(customerID)), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, &GatewayError{StatusCode: status, Message: errorMessage(body)}
	}

	var env customerEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.Customer == nil {
		return nil, ErrNotFound
	}
	for i := range env.Customer.CreditCards {
		env.Customer.CreditCards[i].Type = PaymentMethodCreditCard
	}
	for i := range env.Customer.PayPalAccounts {
		env.Customer.PayPalAccounts[i].Type = PaymentMethodPayPalAccount
	}
	return env.Customer, nil
}

// CreatePaymentMethod vaults a nonce against an existing customer.
func (c *Client) CreatePaymentMethod(ctx context.Context, req PaymentMethodRequest) (*PaymentMethodResult, error) {
	body, status, err := c.send(ctx, http.MethodPost, c.merchantPath("/payment_methods"),
		map[string]interface{}{"paymentMethod": req})
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnprocessableEntity || status == http.StatusNotFound {
		var apiErr apiErrorResponse
		if err := decode(body, &apiErr); err != nil {
			return nil, err
		}
		return &PaymentMethodResult{
			Success: false,
			Message: apiErr.APIErrorResponse.Message,
			Errors:  apiErr.APIErrorResponse.Errors,
		}, nil
	}

	var env paymentMethodEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.PaymentMethod == nil || env.PaymentMethod.Token == "" {
		return nil, &GatewayError{StatusCode: status, Message: "response did not contain a payment method"}
	}
	return &PaymentMethodResult{Success: true, PaymentMethod: env.PaymentMethod}, nil
}

// CreatePaymentMethodNonce exchanges a vaulted token for a one-time nonce,
// which the 3-D Secure widget needs to verify a stored card.
func (c *Client) CreatePaymentMethodNonce(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}

	body, status, err := c.send(ctx, http.MethodPost,
		c.merchantPath("/payment_methods/%s/nonces", url.PathEscape(token)), struct{}{})
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if status == http.StatusUnprocessableEntity {
		return "", &GatewayError{StatusCode: status, Message: errorMessage(body)}
	}

	var env paymentMethodNonceEnvelope
	if err := decode(body, &env); err != nil {
		return "", err
	}
	if env.PaymentMethodNonce.Nonce == "" {
		return "", &GatewayError{StatusCode: status, Message: "response did not contain a nonce"}
	}
	return env.PaymentMethodNonce.Nonce, nil
}

// GenerateClientToken returns a client token for the drop-in widgets. An empty
// merchant account id lets the gateway pick the default account.
func (c *Client) GenerateClientToken(ctx context.Context, merchantAccountID string) (string, error) {
	clientToken := map[string]interface{}{"version": 2}
	if merchantAccountID != "" {
		clientToken["merchantAccountId"] = merchantAccountID
	}

	body, status, err := c.send(ctx, http.MethodPost, c.merchantPath("/client_token"),
		map[string]interface{}{"clientToken": clientToken})
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound || status == http.StatusUnprocessableEntity {
		return "", &GatewayError{StatusCode: status, Message: errorMessage(body)}
	}

	var env clientTokenEnvelope
	if err := decode(body, &env); err != nil {
		return "", err
	}
	if env.ClientToken.Value == "" {
		return "", &GatewayError{StatusCode: status, Message: "response did not contain a client token"}
	}
	return env.ClientToken.Value, nil
}

func (c *Client) FindMerchantAccount(ctx context.Context, merchantAccountID string) (*MerchantAccount, error) {
	if merchantAccountID == "" {
		return nil, ErrNotFound
	}

	body, status, err := c.send(ctx, http.MethodGet,
		c.merchantPath("/merchant_accounts/%s", url.PathEscape(merchantAccountID)), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status == http.StatusUnprocessableEntity {
		return nil, &GatewayError{StatusCode: status, Message: errorMessage(body)}
	}

	var env merchantAccountEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.MerchantAccount == nil {
		return nil, ErrNotFound
	}
	return env.MerchantAccount, nil
}

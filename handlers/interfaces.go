package handlers

import (
	"context"

	"braintree-checkout-api/models"
	"braintree-checkout-api/services/express"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/types"
)

// OrderStore is the order and quote data the checkout and admin handlers use.
type OrderStore interface {
	GetQuote(ctx context.Context, quoteID int64) (*models.Quote, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetPayment(ctx context.Context, orderID int64) (*models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment) error
	UpdateOrderState(ctx context.Context, orderID int64, state, status string) error
}

// ShopperStore resolves who is checking out and in which currency.
type ShopperStore interface {
	GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error)
	StoreBaseCurrency(ctx context.Context, storeID int64) (string, error)
}

// PaymentMethods hands out request-scoped payment objects.
type PaymentMethods interface {
	Wrapper(ctx context.Context, checkout *payment.CheckoutContext) (*payment.Wrapper, error)
	CreditCard(ctx context.Context, checkout *payment.CheckoutContext) (*payment.CreditCard, error)
}

// ExpressFlow is the PayPal Express controller.
type ExpressFlow interface {
	Button(ctx context.Context, storeID int64) (*express.Button, error)
	Authorize(ctx context.Context, st *express.State, req *types.ExpressAuthorizationRequest) (express.Step, error)
	Shipping(ctx context.Context, st *express.State, sel types.ShippingSelection) (*express.ShippingView, error)
	SaveShipping(ctx context.Context, st *express.State, sel types.ShippingSelection) (*express.Totals, error)
	Process(ctx context.Context, st *express.State) (*models.Order, error)
}

// CustomerVerifier checks the storefront's signed statement of which
// customer is logged in.
type CustomerVerifier interface {
	ValidateCustomerToken(token string, storeID int64) (int64, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.AdminAuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.AdminAuthResponse, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

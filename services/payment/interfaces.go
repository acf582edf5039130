package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment/braintree"
)

// Gateway is the subset of the Braintree API the payment methods call.
type Gateway interface {
	Sale(ctx context.Context, req *braintree.TransactionRequest) (*braintree.TransactionResult, error)
	SubmitForSettlement(ctx context.Context, transactionID string, amount decimal.Decimal) (*braintree.TransactionResult, error)
	FindTransaction(ctx context.Context, transactionID string) (*braintree.Transaction, error)
	FindCustomer(ctx context.Context, customerID string) (*braintree.Customer, error)
	CreatePaymentMethod(ctx context.Context, req braintree.PaymentMethodRequest) (*braintree.PaymentMethodResult, error)
	CreatePaymentMethodNonce(ctx context.Context, token string) (string, error)
	GenerateClientToken(ctx context.Context, merchantAccountID string) (string, error)
	FindMerchantAccount(ctx context.Context, merchantAccountID string) (*braintree.MerchantAccount, error)
}

// GatewayFactory builds a gateway for one store's credentials.
type GatewayFactory func(credentials models.GatewayCredentials) Gateway

// SettingsResolver returns the payment settings of a store.
type SettingsResolver interface {
	Resolve(ctx context.Context, storeID int64) (*models.PaymentSettings, error)
}

// Store is the host data the wrapper reads and writes.
type Store interface {
	GetCustomerBraintreeID(ctx context.Context, customerID int64) (string, error)
	SetCustomerBraintreeID(ctx context.Context, customerID int64, braintreeID string) error
	GetCurrencyRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	LatestAdminNotice(ctx context.Context) (*models.AdminNotice, error)
	AddAdminNotice(ctx context.Context, notice *models.AdminNotice) error
}

package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braintree-checkout-api/services/payment/braintree"
)

var amount4999 = decimal.RequireFromString("49.99")

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	var payErr *Error
	require.True(t, errors.As(err, &payErr), "expected *payment.Error, got %v", err)
	assert.Equal(t, kind, payErr.Kind)
	return payErr
}

func TestBuildSale_Basic(t *testing.T) {
	w := NewWrapper(&fakeGateway{}, testSettings(), newFakeStore(), &CheckoutContext{CheckoutMethod: CheckoutMethodGuest})

	req, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "nonce", CVV: "123"}, testOrder(), SaleOptions{
		SubmitForSettlement: true,
		DeviceData:          `{"device_session_id":"abc"}`,
	})
	require.NoError(t, err)

	assert.True(t, amount4999.Equal(req.Amount))
	assert.Equal(t, "100000010", req.OrderID)
	assert.Equal(t, "default_account", req.MerchantAccountID)
	assert.Equal(t, "MagentoVZero", req.Channel)
	assert.Equal(t, "nonce", req.PaymentMethodNonce)
	assert.Empty(t, req.PaymentMethodToken)
	require.NotNil(t, req.CreditCard)
	assert.Equal(t, "123", req.CreditCard.CVV)
	assert.True(t, req.Options.SubmitForSettlement)
	assert.False(t, req.Options.StoreInVault)
	assert.Nil(t, req.Options.ThreeDSecure)
	assert.Equal(t, `{"device_session_id":"abc"}`, req.DeviceData)

	require.NotNil(t, req.Billing)
	assert.Equal(t, "1 High Street", req.Billing.StreetAddress)
	assert.Equal(t, "Flat 2", req.Billing.ExtendedAddress)
	assert.Equal(t, "LND", req.Billing.Region)
	assert.Equal(t, "GB", req.Billing.CountryCodeAlpha2)
	require.NotNil(t, req.Shipping)

	require.NotNil(t, req.Customer)
	assert.Empty(t, req.Customer.ID)
	assert.Equal(t, "Jane", req.Customer.FirstName)
	assert.Equal(t, "jane@example.com", req.Customer.Email)
	assert.Equal(t, "0123456789", req.Customer.Phone)
}

func TestBuildSale_RequiresIncrementID(t *testing.T) {
	w := NewWrapper(&fakeGateway{}, testSettings(), newFakeStore(), nil)
	order := testOrder()
	order.IncrementID = ""

	_, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "n"}, order, SaleOptions{})
	payErr := requireKind(t, err, KindValidation)
	assert.Equal(t, MsgOrderInvalid, payErr.Message)
}

func TestBuildSale_ExactlyOneOfTokenOrNonce(t *testing.T) {
	w := NewWrapper(&fakeGateway{}, testSettings(), newFakeStore(), nil)
	ctx := context.Background()

	_, err := w.BuildSale(ctx, amount4999, PaymentSource{}, testOrder(), SaleOptions{})
	requireKind(t, err, KindValidation)

	_, err = w.BuildSale(ctx, amount4999, PaymentSource{Token: "t", Nonce: "n"}, testOrder(), SaleOptions{})
	requireKind(t, err, KindValidation)

	req, err := w.BuildSale(ctx, amount4999, PaymentSource{Token: "t"}, testOrder(), SaleOptions{})
	require.NoError(t, err)
	assert.Equal(t, "t", req.PaymentMethodToken)
	assert.Empty(t, req.PaymentMethodNonce)
}

func TestBuildSale_ThreeDSecureRequired(t *testing.T) {
	w := NewWrapper(&fakeGateway{}, testSettings(), newFakeStore(), nil)

	req, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "n"}, testOrder(), SaleOptions{ThreeDSecure: true})
	require.NoError(t, err)
	require.NotNil(t, req.Options.ThreeDSecure)
	assert.True(t, req.Options.ThreeDSecure.Required)
}

func TestBuildSale_NewCustomerIncludesID(t *testing.T) {
	store := newFakeStore()
	store.braintreeIDs[5] = "bt5"
	w := NewWrapper(&fakeGateway{}, testSettings(), store, &CheckoutContext{CustomerID: 5})

	req, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "n"}, testOrder(), SaleOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bt5", req.Customer.ID)
}

func TestBuildSale_ExistingCustomerVaultsNonce(t *testing.T) {
	store := newFakeStore()
	store.braintreeIDs[5] = "bt5"
	gw := &fakeGateway{customers: map[string]*braintree.Customer{"bt5": {ID: "bt5"}}}
	w := NewWrapper(gw, testSettings(), store, &CheckoutContext{CustomerID: 5})

	req, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "n"}, testOrder(), SaleOptions{
		StoreInVault: true,
		ThreeDSecure: true,
	})
	require.NoError(t, err)

	require.Len(t, gw.createdMethods, 1)
	assert.Equal(t, "bt5", gw.createdMethods[0].CustomerID)
	assert.Equal(t, "n", gw.createdMethods[0].PaymentMethodNonce)
	assert.Equal(t, "Jane", gw.createdMethods[0].BillingAddress.FirstName)

	assert.Equal(t, "vaulted-token", req.PaymentMethodToken)
	assert.Empty(t, req.PaymentMethodNonce)
	assert.Nil(t, req.Options.ThreeDSecure, "vault-created tokens never require 3-D Secure")
	assert.Empty(t, req.Customer.ID, "existing customers are sent without an id")
}

func TestBuildSale_VaultFailure(t *testing.T) {
	store := newFakeStore()
	store.braintreeIDs[5] = "bt5"
	gw := &fakeGateway{
		customers:    map[string]*braintree.Customer{"bt5": {ID: "bt5"}},
		methodResult: &braintree.PaymentMethodResult{Success: false, Message: "Card is invalid."},
	}
	w := NewWrapper(gw, testSettings(), store, &CheckoutContext{CustomerID: 5})

	_, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "n"}, testOrder(), SaleOptions{StoreInVault: true})
	payErr := requireKind(t, err, KindValidation)
	assert.Equal(t, "Card is invalid. Please try again or attempt refreshing the page.", payErr.Message)
}

func TestBuildSale_CustomerFallsBackToBilling(t *testing.T) {
	w := NewWrapper(&fakeGateway{}, testSettings(), newFakeStore(), nil)
	order := testOrder()
	order.CustomerFirstname = ""
	order.CustomerLastname = "Smith"
	order.CustomerEmail = ""

	req, err := w.BuildSale(context.Background(), amount4999, PaymentSource{Nonce: "n"}, order, SaleOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Jane", req.Customer.FirstName)
	assert.Equal(t, "Smith", req.Customer.LastName)
	assert.Equal(t, "jane@example.com", req.Customer.Email)
}

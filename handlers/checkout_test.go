package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/services/payment/braintree"
)

type checkoutFixture struct {
	orders    *fakeOrders
	payments  *paymentFixture
	customers *fakeCustomers
	sessions  *SessionManager
	handler   *CheckoutHandler
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orders:    newFakeOrders(),
		payments:  newPaymentFixture(),
		customers: &fakeCustomers{tokens: map[string]int64{"signed-12": 12, "signed-13": 13}},
		sessions:  newTestSessions(),
	}
	f.handler = NewCheckoutHandler(f.orders, f.payments.service, f.customers, f.sessions)

	f.orders.quotes[5] = &models.Quote{
		ID:                5,
		StoreID:           1,
		IsActive:          true,
		QuoteCurrencyCode: "GBP",
		BaseCurrencyCode:  "GBP",
		GrandTotal:        decimal.RequireFromString("52.48"),
		BillingAddress:    &models.Address{FirstName: "Jane", LastName: "Doe", Postcode: "SW1A 1AA"},
	}
	f.orders.orders[7] = &models.Order{
		ID:                7,
		IncrementID:       "100000007",
		StoreID:           1,
		QuoteID:           5,
		BaseCurrencyCode:  "GBP",
		OrderCurrencyCode: "GBP",
		BaseGrandTotal:    decimal.RequireFromString("49.99"),
		GrandTotal:        decimal.RequireFromString("49.99"),
		CustomerEmail:     "jane@example.com",
		CustomerIsGuest:   true,
		BillingAddress:    &models.Address{FirstName: "Jane", LastName: "Doe", Street: []string{"1 High St"}, City: "London", Postcode: "SW1A 1AA", CountryID: "GB"},
		State:             models.OrderStateNew,
	}
	return f
}

func (f *checkoutFixture) orderRequest(t *testing.T, action string, body string, cs *CheckoutSession) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/orders/7/"+action, strings.NewReader(body))
	req.AddCookie(sessionCookie(t, f.sessions, cs))
	return mux.SetURLVars(req, map[string]string{"id": "7"})
}

func (f *checkoutFixture) postSession(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.Session(rec, req)
	return rec
}

func TestCheckoutSession_BindsGuestQuote(t *testing.T) {
	f := newCheckoutFixture()

	rec := f.postSession(`{"quote_id":5}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.FormKey, 16)
	assert.Equal(t, int64(5), resp.QuoteID)
	assert.Zero(t, resp.CustomerID)

	cs := readSession(t, f.sessions, rec)
	assert.Equal(t, int64(5), cs.QuoteID)
	assert.Zero(t, cs.CustomerID)
	assert.Equal(t, payment.CheckoutMethodGuest, cs.CheckoutMethod)
	assert.Equal(t, resp.FormKey, cs.FormKey)
}

func TestCheckoutSession_CustomerQuote(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		customer int64
	}{
		{"anonymous session cannot take it over", `{"quote_id":5}`, http.StatusNotFound, 0},
		{"another customer cannot take it over", `{"quote_id":5,"customer_token":"signed-13"}`, http.StatusNotFound, 0},
		{"forged token", `{"quote_id":5,"customer_token":"forged"}`, http.StatusUnauthorized, 0},
		{"owner binds it", `{"quote_id":5,"customer_token":"signed-12"}`, http.StatusOK, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			f.orders.quotes[5].CustomerID = 12

			rec := f.postSession(tt.body)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			cs := readSession(t, f.sessions, rec)
			assert.Equal(t, int64(5), cs.QuoteID)
			assert.Equal(t, tt.customer, cs.CustomerID)
			assert.Equal(t, payment.CheckoutMethodLoginIn, cs.CheckoutMethod)
		})
	}
}

func TestCheckoutSession_LoginInNeedsCustomer(t *testing.T) {
	f := newCheckoutFixture()

	rec := f.postSession(`{"quote_id":5,"checkout_method":"login_in"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckoutSession_UnknownQuote(t *testing.T) {
	f := newCheckoutFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/session", strings.NewReader(`{"quote_id":999}`))
	rec := httptest.NewRecorder()
	f.handler.Session(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteTotal(t *testing.T) {
	f := newCheckoutFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/quote-total", nil)
	req.AddCookie(sessionCookie(t, f.sessions, &CheckoutSession{QuoteID: 5}))
	rec := httptest.NewRecorder()
	f.handler.QuoteTotal(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp quoteTotalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, quoteTotalResponse{
		BillingName:     "Jane Doe",
		BillingPostcode: "SW1A 1AA",
		GrandTotal:      "52.48",
		CurrencyCode:    "GBP",
	}, resp)
}

func TestQuoteTotal_NoQuote(t *testing.T) {
	f := newCheckoutFixture()

	rec := httptest.NewRecorder()
	f.handler.QuoteTotal(rec, httptest.NewRequest(http.MethodGet, "/api/checkout/quote-total", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenizeCard(t *testing.T) {
	f := newCheckoutFixture()
	f.payments.vaultCustomer(12, "bt12", "abc", "def")

	tokenize := func(body string, cs *CheckoutSession) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/tokenize-card", strings.NewReader(body))
		if cs != nil {
			req.AddCookie(sessionCookie(t, f.sessions, cs))
		}
		rec := httptest.NewRecorder()
		f.handler.TokenizeCard(rec, req)
		return rec
	}

	t.Run("guest is refused", func(t *testing.T) {
		rec := tokenize(`{"tokens":["abc"]}`, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("logged in customer", func(t *testing.T) {
		rec := tokenize(`{"tokens":["abc","def"]}`, &CheckoutSession{CustomerID: 12, QuoteID: 5})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp tokenizeResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, map[string]string{"abc": "nonce-for-abc", "def": "nonce-for-def"}, resp.Tokens)
	})

	t.Run("token outside the customer's vault", func(t *testing.T) {
		rec := tokenize(`{"tokens":["abc","someone-elses-token"]}`, &CheckoutSession{CustomerID: 12, QuoteID: 5})

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotContains(t, rec.Body.String(), "nonce-for-")
	})

	t.Run("customer without a vault record", func(t *testing.T) {
		rec := tokenize(`{"tokens":["abc"]}`, &CheckoutSession{CustomerID: 13})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty token list", func(t *testing.T) {
		rec := tokenize(`{"tokens":[]}`, &CheckoutSession{CustomerID: 12})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClientToken_UsesMappedMerchantAccount(t *testing.T) {
	f := newCheckoutFixture()
	f.orders.quotes[5].QuoteCurrencyCode = "EUR"

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/client-token", nil)
	req.AddCookie(sessionCookie(t, f.sessions, &CheckoutSession{QuoteID: 5}))
	rec := httptest.NewRecorder()
	f.handler.ClientToken(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "client-token-main_eur", resp["client_token"])
}

func TestThreeDSecure(t *testing.T) {
	f := newCheckoutFixture()

	check := func() bool {
		rec := httptest.NewRecorder()
		f.handler.ThreeDSecure(rec, httptest.NewRequest(http.MethodGet, "/api/checkout/three-d-secure", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]bool
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp["enabled"]
	}

	assert.False(t, check())

	f.payments.settings.CreditCard.ThreeDSecure = true
	assert.True(t, check())

	f.payments.settings.CreditCard.Active = false
	assert.False(t, check(), "an unavailable method never renders 3-D Secure")
}

func TestAuthorize(t *testing.T) {
	f := newCheckoutFixture()

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"payment_method_nonce":"fake-valid-nonce"}`, &CheckoutSession{QuoteID: 5}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp paymentSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tx-100", resp.TransactionID)
	assert.Equal(t, "49.99", resp.Amount)
	assert.Equal(t, models.PaymentStatusApproved, resp.Status)
	assert.Equal(t, models.OrderStateProcessing, resp.State)
	assert.Equal(t, "1111", resp.CcLast4)

	require.Len(t, f.payments.gateway.sales, 1)
	sale := f.payments.gateway.sales[0]
	assert.Equal(t, "fake-valid-nonce", sale.PaymentMethodNonce)
	assert.Equal(t, "main_gbp", sale.MerchantAccountID)
	assert.False(t, sale.Options.SubmitForSettlement)
	assert.Equal(t, "100000007", sale.OrderID)

	require.Len(t, f.orders.saved, 1)
	assert.Equal(t, int64(7), f.orders.saved[0].OrderID)
	assert.Equal(t, models.OrderStateProcessing, f.orders.states[7])
}

func TestAuthorize_Declined(t *testing.T) {
	f := newCheckoutFixture()
	f.payments.gateway.saleResult = &braintree.TransactionResult{
		Success:     false,
		Transaction: &braintree.Transaction{ID: "tx-declined", Status: braintree.StatusProcessorDeclined},
	}

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"payment_method_nonce":"fake-nonce"}`, &CheckoutSession{QuoteID: 5}))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	var resp models.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, payment.MsgDeclined, resp.Message)
	assert.Empty(t, f.orders.saved)
	assert.Empty(t, f.orders.states)
}

func TestAuthorize_MissingNonce(t *testing.T) {
	f := newCheckoutFixture()

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{}`, &CheckoutSession{QuoteID: 5}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.payments.gateway.sales)
}

func TestAuthorize_OrderFromAnotherSession(t *testing.T) {
	f := newCheckoutFixture()

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"payment_method_nonce":"n"}`, &CheckoutSession{QuoteID: 6}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.payments.gateway.sales)
}

func TestAuthorize_AlreadyPaid(t *testing.T) {
	f := newCheckoutFixture()
	f.orders.payments[7] = &models.Payment{ID: 3, OrderID: 7, CcTransID: "tx-old"}

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"payment_method_nonce":"n"}`, &CheckoutSession{QuoteID: 5}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.payments.gateway.sales)
}

func TestCapture_ConvertsMappedCurrency(t *testing.T) {
	f := newCheckoutFixture()
	f.orders.orders[7].OrderCurrencyCode = "EUR"

	rec := httptest.NewRecorder()
	f.handler.Capture(rec, f.orderRequest(t, "capture", `{"payment_method_nonce":"fake-valid-nonce"}`, &CheckoutSession{QuoteID: 5}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.payments.gateway.sales, 1)
	sale := f.payments.gateway.sales[0]
	assert.True(t, sale.Options.SubmitForSettlement)
	assert.Equal(t, "main_eur", sale.MerchantAccountID)
	assert.True(t, sale.Amount.Equal(decimal.RequireFromString("49.99")))
}

func TestAuthorize_StoredCardOfAnotherCustomer(t *testing.T) {
	f := newCheckoutFixture()
	f.payments.vaultCustomer(12, "bt12", "abc")
	f.orders.orders[7].CustomerID = 12
	f.orders.orders[7].CustomerIsGuest = false

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"card_payment_method_token":"someone-elses-token"}`,
		&CheckoutSession{QuoteID: 5, CustomerID: 12}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, payment.MsgStoredMethod, resp.Message)
	assert.Empty(t, f.payments.gateway.sales)
}

func TestAuthorize_OwnStoredCard(t *testing.T) {
	f := newCheckoutFixture()
	f.payments.vaultCustomer(12, "bt12", "abc")
	f.orders.orders[7].CustomerID = 12
	f.orders.orders[7].CustomerIsGuest = false

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"card_payment_method_token":"abc"}`,
		&CheckoutSession{QuoteID: 5, CustomerID: 12}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.payments.gateway.sales, 1)
	assert.Equal(t, "abc", f.payments.gateway.sales[0].PaymentMethodToken)
}

func TestAuthorize_FraudRejectionHeldForReview(t *testing.T) {
	f := newCheckoutFixture()
	f.payments.gateway.saleResult = &braintree.TransactionResult{
		Success: false,
		Message: "Gateway Rejected: fraud",
		Transaction: &braintree.Transaction{
			ID:                     "tx-fraud",
			Status:                 braintree.StatusGatewayRejected,
			GatewayRejectionReason: "fraud",
			RiskData:               &braintree.RiskData{ID: "risk-1", Decision: braintree.RiskDecline},
		},
	}

	rec := httptest.NewRecorder()
	f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"payment_method_nonce":"fake-nonce"}`, &CheckoutSession{QuoteID: 5}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.Len(t, f.orders.saved, 1)
	held := f.orders.saved[0]
	assert.Equal(t, "tx-fraud", held.TransactionID)
	assert.Equal(t, models.PaymentStatusPending, held.Status)
	assert.True(t, held.IsFraudDetected)
	assert.True(t, held.IsTransactionPending)
	assert.Equal(t, models.OrderStatePaymentReview, f.orders.states[7])

	t.Run("retry is refused while under review", func(t *testing.T) {
		f.payments.gateway.saleResult = nil

		rec := httptest.NewRecorder()
		f.handler.Authorize(rec, f.orderRequest(t, "authorize", `{"payment_method_nonce":"fake-valid-nonce"}`, &CheckoutSession{QuoteID: 5}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, f.payments.gateway.sales, 1)
	})
}

func TestCapture_DoesNotSettleExistingAuthorization(t *testing.T) {
	f := newCheckoutFixture()
	f.orders.payments[7] = &models.Payment{
		ID:                   3,
		OrderID:              7,
		CcTransID:            "tx-held",
		Status:               models.PaymentStatusPending,
		IsFraudDetected:      true,
		IsTransactionPending: true,
	}

	rec := httptest.NewRecorder()
	f.handler.Capture(rec, f.orderRequest(t, "capture", `{"payment_method_nonce":"fake-valid-nonce"}`, &CheckoutSession{QuoteID: 5}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.payments.gateway.settled)
	assert.Empty(t, f.payments.gateway.sales)
	assert.Empty(t, f.orders.saved)
	assert.True(t, f.orders.payments[7].IsFraudDetected)
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"braintree-checkout-api/database"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/auth"
	"braintree-checkout-api/services/express"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/services/payment/braintree"
	"braintree-checkout-api/types"
)

type fakeOrders struct {
	quotes   map[int64]*models.Quote
	orders   map[int64]*models.Order
	payments map[int64]*models.Payment
	saved    []*models.Payment
	states   map[int64]string
	saveErr  error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		quotes:   make(map[int64]*models.Quote),
		orders:   make(map[int64]*models.Order),
		payments: make(map[int64]*models.Payment),
		states:   make(map[int64]string),
	}
}

func (f *fakeOrders) GetQuote(ctx context.Context, quoteID int64) (*models.Quote, error) {
	if q, ok := f.quotes[quoteID]; ok {
		return q, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	if o, ok := f.orders[orderID]; ok {
		return o, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeOrders) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	if p, ok := f.payments[orderID]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeOrders) SavePayment(ctx context.Context, p *models.Payment) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p)
	f.payments[p.OrderID] = p
	return nil
}

func (f *fakeOrders) UpdateOrderState(ctx context.Context, orderID int64, state, status string) error {
	f.states[orderID] = state
	return nil
}

type fakeShoppers struct {
	customers map[int64]*models.Customer
	currency  string
}

func (f *fakeShoppers) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	if c, ok := f.customers[customerID]; ok {
		return c, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeShoppers) StoreBaseCurrency(ctx context.Context, storeID int64) (string, error) {
	return f.currency, nil
}

type fakeResolver struct {
	settings *models.PaymentSettings
}

func (f *fakeResolver) Resolve(ctx context.Context, storeID int64) (*models.PaymentSettings, error) {
	s := *f.settings
	s.StoreID = storeID
	return &s, nil
}

type fakePaymentStore struct {
	braintreeIDs map[int64]string
}

func (f *fakePaymentStore) GetCustomerBraintreeID(ctx context.Context, customerID int64) (string, error) {
	return f.braintreeIDs[customerID], nil
}

func (f *fakePaymentStore) SetCustomerBraintreeID(ctx context.Context, customerID int64, braintreeID string) error {
	f.braintreeIDs[customerID] = braintreeID
	return nil
}

func (f *fakePaymentStore) GetCurrencyRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func (f *fakePaymentStore) LatestAdminNotice(ctx context.Context) (*models.AdminNotice, error) {
	return nil, nil
}

func (f *fakePaymentStore) AddAdminNotice(ctx context.Context, notice *models.AdminNotice) error {
	return nil
}

type fakeGateway struct {
	sales        []*braintree.TransactionRequest
	saleResult   *braintree.TransactionResult
	transactions map[string]*braintree.Transaction
	findErr      error
	merchantErr  error
	nonceErr     error
	accounts     []string
	settled      []string
	customers    map[string]*braintree.Customer
}

func (g *fakeGateway) Sale(ctx context.Context, req *braintree.TransactionRequest) (*braintree.TransactionResult, error) {
	g.sales = append(g.sales, req)
	if g.saleResult != nil {
		return g.saleResult, nil
	}
	return &braintree.TransactionResult{
		Success: true,
		Transaction: &braintree.Transaction{
			ID:         "tx-100",
			Status:     braintree.StatusAuthorized,
			Amount:     req.Amount,
			CreditCard: &braintree.CreditCard{Last4: "1111", CardType: "Visa"},
		},
	}, nil
}

func (g *fakeGateway) SubmitForSettlement(ctx context.Context, transactionID string, amount decimal.Decimal) (*braintree.TransactionResult, error) {
	g.settled = append(g.settled, transactionID)
	return &braintree.TransactionResult{
		Success:     true,
		Transaction: &braintree.Transaction{ID: transactionID, Status: "submitted_for_settlement", Amount: amount},
	}, nil
}

func (g *fakeGateway) FindTransaction(ctx context.Context, transactionID string) (*braintree.Transaction, error) {
	if g.findErr != nil {
		return nil, g.findErr
	}
	if tx, ok := g.transactions[transactionID]; ok {
		return tx, nil
	}
	return nil, braintree.ErrNotFound
}

func (g *fakeGateway) FindCustomer(ctx context.Context, customerID string) (*braintree.Customer, error) {
	if c, ok := g.customers[customerID]; ok {
		return c, nil
	}
	return nil, braintree.ErrNotFound
}

func (g *fakeGateway) CreatePaymentMethod(ctx context.Context, req braintree.PaymentMethodRequest) (*braintree.PaymentMethodResult, error) {
	return &braintree.PaymentMethodResult{Success: true, PaymentMethod: &braintree.PaymentMethod{Token: "vaulted"}}, nil
}

func (g *fakeGateway) CreatePaymentMethodNonce(ctx context.Context, token string) (string, error) {
	if g.nonceErr != nil {
		return "", g.nonceErr
	}
	return "nonce-for-" + token, nil
}

func (g *fakeGateway) GenerateClientToken(ctx context.Context, merchantAccountID string) (string, error) {
	g.accounts = append(g.accounts, merchantAccountID)
	return "client-token-" + merchantAccountID, nil
}

func (g *fakeGateway) FindMerchantAccount(ctx context.Context, merchantAccountID string) (*braintree.MerchantAccount, error) {
	if g.merchantErr != nil {
		return nil, g.merchantErr
	}
	return &braintree.MerchantAccount{ID: merchantAccountID, Status: "active"}, nil
}

func testSettings() *models.PaymentSettings {
	return &models.PaymentSettings{
		StoreName: "Main Store",
		Credentials: models.GatewayCredentials{
			Environment:       "sandbox",
			MerchantID:        "merchant",
			PublicKey:         "public",
			PrivateKey:        "private",
			MerchantAccountID: "main_gbp",
		},
		MultiCurrencyEnabled: true,
		CurrencyMapping:      map[string]string{"EUR": "main_eur"},
		CreditCard: models.CreditCardSettings{
			Active:        true,
			PaymentAction: models.PaymentActionAuthorize,
		},
	}
}

type paymentFixture struct {
	settings *models.PaymentSettings
	gateway  *fakeGateway
	store    *fakePaymentStore
	service  *payment.Service
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		settings: testSettings(),
		gateway: &fakeGateway{
			transactions: make(map[string]*braintree.Transaction),
			customers:    make(map[string]*braintree.Customer),
		},
		store: &fakePaymentStore{braintreeIDs: make(map[int64]string)},
	}
	f.service = payment.NewPaymentService(
		&fakeResolver{settings: f.settings},
		f.store,
		func(models.GatewayCredentials) payment.Gateway { return f.gateway },
	)
	return f
}

// vaultCustomer gives customerID a vault record holding tokens.
func (f *paymentFixture) vaultCustomer(customerID int64, braintreeID string, tokens ...string) {
	f.store.braintreeIDs[customerID] = braintreeID
	customer := &braintree.Customer{ID: braintreeID}
	for _, token := range tokens {
		customer.CreditCards = append(customer.CreditCards, braintree.PaymentMethod{
			Type:       braintree.PaymentMethodCreditCard,
			Token:      token,
			CustomerID: braintreeID,
		})
	}
	f.gateway.customers[braintreeID] = customer
}

type fakeCustomers struct {
	tokens map[string]int64
}

func (f *fakeCustomers) ValidateCustomerToken(token string, storeID int64) (int64, error) {
	if id, ok := f.tokens[token]; ok && storeID == DefaultStoreID {
		return id, nil
	}
	return 0, auth.ErrInvalidToken
}

type fakeFlow struct {
	button *express.Button

	authorizeErr error
	shippingView *express.ShippingView
	shippingErr  error
	totals       *express.Totals
	order        *models.Order
	processErr   error

	states     []express.State
	selections []types.ShippingSelection
}

func (f *fakeFlow) Button(ctx context.Context, storeID int64) (*express.Button, error) {
	return f.button, nil
}

func (f *fakeFlow) Authorize(ctx context.Context, st *express.State, req *types.ExpressAuthorizationRequest) (express.Step, error) {
	f.states = append(f.states, *st)
	if f.authorizeErr != nil {
		return express.StepError, f.authorizeErr
	}
	st.QuoteID = 77
	st.Nonce = req.PayPal.Nonce
	st.Source = req.FormData.Source
	return express.StepShipping, nil
}

func (f *fakeFlow) Shipping(ctx context.Context, st *express.State, sel types.ShippingSelection) (*express.ShippingView, error) {
	f.states = append(f.states, *st)
	f.selections = append(f.selections, sel)
	return f.shippingView, f.shippingErr
}

func (f *fakeFlow) SaveShipping(ctx context.Context, st *express.State, sel types.ShippingSelection) (*express.Totals, error) {
	f.states = append(f.states, *st)
	f.selections = append(f.selections, sel)
	return f.totals, nil
}

func (f *fakeFlow) Process(ctx context.Context, st *express.State) (*models.Order, error) {
	f.states = append(f.states, *st)
	if f.processErr != nil {
		return nil, f.processErr
	}
	st.LastQuoteID = st.QuoteID
	if st.Source == express.SourceCart {
		st.LastQuoteID = st.CartQuoteID
	}
	st.LastOrderID = f.order.ID
	st.LastIncrementID = f.order.IncrementID
	st.QuoteID = 0
	st.Nonce = ""
	st.Source = ""
	return f.order, nil
}

func newTestSessions() *SessionManager {
	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	return NewSessionManagerWithStore(store, "checkout_test")
}

// sessionCookie builds a signed cookie holding cs.
func sessionCookie(t *testing.T, mgr *SessionManager, cs *CheckoutSession) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	session, loaded := mgr.Load(req)
	if cs.FormKey == "" {
		cs.FormKey = loaded.FormKey
	}
	if cs.StoreID == 0 {
		cs.StoreID = DefaultStoreID
	}
	require.NoError(t, mgr.Save(rec, req, session, cs))
	return lastCookie(t, rec)
}

func lastCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[len(cookies)-1]
}

// readSession decodes the session a response wrote.
func readSession(t *testing.T, mgr *SessionManager, rec *httptest.ResponseRecorder) *CheckoutSession {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(lastCookie(t, rec))
	_, cs := mgr.Load(req)
	return cs
}

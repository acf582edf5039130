package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment/braintree"
)

type fakeGateway struct {
	sales       []*braintree.TransactionRequest
	saleResult  *braintree.TransactionResult
	saleErr     error
	settleCalls int
	settleAmt   decimal.Decimal
	settleRes   *braintree.TransactionResult
	settleErr   error

	customers      map[string]*braintree.Customer
	customerLookup int

	createdMethods []braintree.PaymentMethodRequest
	methodResult   *braintree.PaymentMethodResult

	merchantAccountErr error
	merchantLookups    int

	clientTokenAccount string
}

func (g *fakeGateway) Sale(ctx context.Context, req *braintree.TransactionRequest) (*braintree.TransactionResult, error) {
	g.sales = append(g.sales, req)
	if g.saleErr != nil {
		return nil, g.saleErr
	}
	if g.saleResult != nil {
		return g.saleResult, nil
	}
	return &braintree.TransactionResult{
		Success:     true,
		Transaction: &braintree.Transaction{ID: "tx1", Status: braintree.StatusAuthorized, Amount: req.Amount},
	}, nil
}

func (g *fakeGateway) SubmitForSettlement(ctx context.Context, transactionID string, amount decimal.Decimal) (*braintree.TransactionResult, error) {
	g.settleCalls++
	g.settleAmt = amount
	if g.settleErr != nil {
		return nil, g.settleErr
	}
	return g.settleRes, nil
}

func (g *fakeGateway) FindTransaction(ctx context.Context, transactionID string) (*braintree.Transaction, error) {
	return nil, braintree.ErrNotFound
}

func (g *fakeGateway) FindCustomer(ctx context.Context, customerID string) (*braintree.Customer, error) {
	g.customerLookup++
	if c, ok := g.customers[customerID]; ok {
		return c, nil
	}
	return nil, braintree.ErrNotFound
}

func (g *fakeGateway) CreatePaymentMethod(ctx context.Context, req braintree.PaymentMethodRequest) (*braintree.PaymentMethodResult, error) {
	g.createdMethods = append(g.createdMethods, req)
	if g.methodResult != nil {
		return g.methodResult, nil
	}
	return &braintree.PaymentMethodResult{
		Success:       true,
		PaymentMethod: &braintree.PaymentMethod{Token: "vaulted-token", CustomerID: req.CustomerID},
	}, nil
}

func (g *fakeGateway) CreatePaymentMethodNonce(ctx context.Context, token string) (string, error) {
	return "nonce-for-" + token, nil
}

func (g *fakeGateway) GenerateClientToken(ctx context.Context, merchantAccountID string) (string, error) {
	g.clientTokenAccount = merchantAccountID
	return "client-token", nil
}

func (g *fakeGateway) FindMerchantAccount(ctx context.Context, merchantAccountID string) (*braintree.MerchantAccount, error) {
	g.merchantLookups++
	if g.merchantAccountErr != nil {
		return nil, g.merchantAccountErr
	}
	return &braintree.MerchantAccount{ID: merchantAccountID, Status: "active"}, nil
}

type fakeStore struct {
	braintreeIDs map[int64]string
	saved        map[int64]string
	rates        map[string]decimal.Decimal
	latest       *models.AdminNotice
	notices      []*models.AdminNotice
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		braintreeIDs: map[int64]string{},
		saved:        map[int64]string{},
		rates:        map[string]decimal.Decimal{},
	}
}

func (s *fakeStore) GetCustomerBraintreeID(ctx context.Context, customerID int64) (string, error) {
	return s.braintreeIDs[customerID], nil
}

func (s *fakeStore) SetCustomerBraintreeID(ctx context.Context, customerID int64, braintreeID string) error {
	s.saved[customerID] = braintreeID
	s.braintreeIDs[customerID] = braintreeID
	return nil
}

func (s *fakeStore) GetCurrencyRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, ok := s.rates[from+to]
	if !ok {
		return decimal.Zero, errors.New("no rate")
	}
	return rate, nil
}

func (s *fakeStore) LatestAdminNotice(ctx context.Context) (*models.AdminNotice, error) {
	return s.latest, nil
}

func (s *fakeStore) AddAdminNotice(ctx context.Context, notice *models.AdminNotice) error {
	s.notices = append(s.notices, notice)
	s.latest = notice
	return nil
}

func testSettings() *models.PaymentSettings {
	return &models.PaymentSettings{
		StoreID:   1,
		StoreName: "Main Website",
		Credentials: models.GatewayCredentials{
			Environment:       "sandbox",
			MerchantID:        "merchant",
			PublicKey:         "pub",
			PrivateKey:        "priv",
			MerchantAccountID: "default_account",
		},
		CreditCard: models.CreditCardSettings{
			Active:        true,
			PaymentAction: models.PaymentActionAuthorize,
		},
		PayPal: models.PayPalSettings{
			Active:        true,
			ExpressActive: true,
			PaymentAction: models.PaymentActionAuthorize,
		},
	}
}

func testOrder() *models.Order {
	billing := &models.Address{
		FirstName:  "Jane",
		LastName:   "Doe",
		Street:     []string{"1 High Street", "Flat 2"},
		City:       "London",
		Region:     "Greater London",
		RegionCode: "LND",
		Postcode:   "N1 1AA",
		CountryID:  "GB",
		Telephone:  "0123456789",
		Email:      "jane@example.com",
	}
	return &models.Order{
		ID:               10,
		IncrementID:      "100000010",
		StoreID:          1,
		BaseCurrencyCode: "GBP",
		BaseGrandTotal:   decimal.RequireFromString("49.99"),
		GrandTotal:       decimal.RequireFromString("49.99"),
		BillingAddress:   billing,
		ShippingAddress:  billing,
	}
}

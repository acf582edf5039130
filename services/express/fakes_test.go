package express

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"braintree-checkout-api/database"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/types"
)

type fakeSettings struct {
	settings *models.PaymentSettings
}

func (f *fakeSettings) Resolve(ctx context.Context, storeID int64) (*models.PaymentSettings, error) {
	return f.settings, nil
}

func expressSettings() *fakeSettings {
	return &fakeSettings{settings: &models.PaymentSettings{
		StoreID:   1,
		StoreName: "Main Website",
		PayPal: models.PayPalSettings{
			Active:        true,
			ExpressActive: true,
			ExpressPDP:    true,
			PaymentAction: models.PaymentActionAuthorize,
		},
	}}
}

type fakeStore struct {
	quotes         map[int64]*models.Quote
	products       map[int64]*models.Product
	rates          map[string][]models.ShippingRate
	regions        map[string]*models.Region
	regionRequired map[string]bool
	currencyRates  map[string]decimal.Decimal
	nextQuoteID    int64
	nextOrderSeq   int64
	saveCalls      int
	submitted      *models.Order
	submittedPay   *models.Payment
	submitErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quotes: make(map[int64]*models.Quote),
		products: map[int64]*models.Product{
			8:  {ID: 8, SKU: "TSHIRT", Name: "T-Shirt", Price: decimal.RequireFromString("19.99"), IsSalable: true},
			9:  {ID: 9, SKU: "EBOOK", Name: "E-Book", Price: decimal.RequireFromString("5.00"), IsSalable: true, IsVirtual: true},
			10: {ID: 10, SKU: "GONE", Name: "Discontinued", Price: decimal.RequireFromString("1.00")},
		},
		rates: map[string][]models.ShippingRate{
			"GB": {
				{Code: "flatrate_flatrate", Carrier: "flatrate", MethodTitle: "Fixed", Price: decimal.RequireFromString("5.00")},
				{Code: "express_next", Carrier: "express", MethodTitle: "Next Day", Price: decimal.RequireFromString("12.50")},
			},
			"US": {
				{Code: "flatrate_flatrate", Carrier: "flatrate", MethodTitle: "Fixed", Price: decimal.RequireFromString("7.00")},
			},
		},
		regions:        map[string]*models.Region{"US/CA": {ID: 12, CountryID: "US", Code: "CA", Name: "California"}},
		regionRequired: map[string]bool{"US": true},
		currencyRates:  map[string]decimal.Decimal{"GBPEUR": decimal.RequireFromString("1.1737")},
		nextQuoteID:    100,
		nextOrderSeq:   7,
	}
}

func (f *fakeStore) GetQuote(ctx context.Context, quoteID int64) (*models.Quote, error) {
	q, ok := f.quotes[quoteID]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *q
	clone.Items = append([]models.QuoteItem(nil), q.Items...)
	return &clone, nil
}

func (f *fakeStore) SaveQuote(ctx context.Context, quote *models.Quote) error {
	f.saveCalls++
	if quote.ID == 0 {
		f.nextQuoteID++
		quote.ID = f.nextQuoteID
	}
	clone := *quote
	clone.Items = append([]models.QuoteItem(nil), quote.Items...)
	f.quotes[quote.ID] = &clone
	return nil
}

func (f *fakeStore) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ShippingRates(ctx context.Context, countryID string) ([]models.ShippingRate, error) {
	return f.rates[countryID], nil
}

func (f *fakeStore) FindRegion(ctx context.Context, countryID, code string) (*models.Region, error) {
	r, ok := f.regions[countryID+"/"+code]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) RegionRequired(ctx context.Context, countryID string) (bool, error) {
	return f.regionRequired[countryID], nil
}

func (f *fakeStore) GetCurrencyRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, ok := f.currencyRates[from+to]
	if !ok {
		return decimal.Zero, errors.New("no rate")
	}
	return rate, nil
}

func (f *fakeStore) ReserveOrderID(ctx context.Context, storeID int64) (string, error) {
	f.nextOrderSeq++
	return decimal.NewFromInt(100000000 + f.nextOrderSeq).String(), nil
}

func (f *fakeStore) SubmitOrder(ctx context.Context, order *models.Order, p *models.Payment) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	order.ID = 500
	p.OrderID = order.ID
	f.submitted = order
	f.submittedPay = p
	if q, ok := f.quotes[order.QuoteID]; ok {
		q.IsActive = false
	}
	return nil
}

type fakeCharger struct {
	calls    int
	nonce    string
	amount   decimal.Decimal
	checkout *payment.CheckoutContext
	err      error
	risk     bool
}

func (f *fakeCharger) Code() string {
	return models.MethodPayPal
}

func (f *fakeCharger) Pay(ctx context.Context, p *models.Payment, order *models.Order, nonce string, amount decimal.Decimal) error {
	f.calls++
	f.nonce = nonce
	f.amount = amount
	if f.err != nil {
		return f.err
	}
	p.Status = models.PaymentStatusApproved
	p.TransactionID = "paypal-tx"
	if f.risk {
		p.Status = models.PaymentStatusPending
		p.IsTransactionPending = true
		p.IsFraudDetected = true
	}
	return nil
}

func newTestService(store *fakeStore, charger *fakeCharger) *Service {
	return NewService(expressSettings(), store, func(ctx context.Context, checkout *payment.CheckoutContext) (Charger, error) {
		charger.checkout = checkout
		return charger, nil
	})
}

func testState() *State {
	return &State{StoreID: 1, FormKey: "fk123", BaseCurrency: "GBP", Currency: "GBP"}
}

func authorizationRequest() *types.ExpressAuthorizationRequest {
	return &types.ExpressAuthorizationRequest{
		FormData: types.ExpressForm{FormKey: "fk123", Source: SourceProduct, Product: 8, Qty: 2},
		PayPal: types.PayPalAuthorization{
			Nonce: "paypal-nonce",
			Details: types.PayPalDetails{
				Email: "jane@example.com",
				ShippingAddress: &types.PayPalShippingAddress{
					RecipientName:     "Jane Mary Doe",
					StreetAddress:     "1 High Street",
					ExtendedAddress:   "Flat 2",
					Locality:          "London",
					CountryCodeAlpha2: "GB",
					PostalCode:        "N1 1AA",
				},
			},
		},
	}
}

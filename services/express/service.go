package express

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/types"
)

const (
	SourceProduct = "product"
	SourceCart    = "cart"
)

// Step is where the shopper goes next.
type Step string

const (
	StepShipping Step = "shipping"
	StepProcess  Step = "process"
	StepComplete Step = "complete"
	StepError    Step = "error"
)

// QuoteStore is the host data the express flow reads and writes.
type QuoteStore interface {
	GetQuote(ctx context.Context, quoteID int64) (*models.Quote, error)
	SaveQuote(ctx context.Context, quote *models.Quote) error
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	ShippingRates(ctx context.Context, countryID string) ([]models.ShippingRate, error)
	FindRegion(ctx context.Context, countryID, code string) (*models.Region, error)
	RegionRequired(ctx context.Context, countryID string) (bool, error)
	GetCurrencyRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	ReserveOrderID(ctx context.Context, storeID int64) (string, error)
	SubmitOrder(ctx context.Context, order *models.Order, payment *models.Payment) error
}

// Charger takes the PayPal payment for a converted quote.
type Charger interface {
	Code() string
	Pay(ctx context.Context, p *models.Payment, order *models.Order, nonce string, amount decimal.Decimal) error
}

// ChargerFactory builds the PayPal method for a request.
type ChargerFactory func(ctx context.Context, checkout *payment.CheckoutContext) (Charger, error)

// State is the session data the flow reads and updates. The caller loads it
// from the sessions before a step and saves it afterwards.
type State struct {
	StoreID      int64
	FormKey      string
	Customer     *models.Customer
	CartQuoteID  int64
	BaseCurrency string
	Currency     string

	QuoteID int64
	Nonce   string
	Source  string

	LastQuoteID     int64
	LastOrderID     int64
	LastIncrementID string
}

func (st *State) reset() {
	st.QuoteID = 0
	st.Nonce = ""
	st.Source = ""
}

// Button tells the storefront where to render the PayPal Express button.
type Button struct {
	Enabled bool `json:"enabled"`
	PDP     bool `json:"pdp"`
	Cart    bool `json:"cart"`
}

// ShippingView is the shipping step: the offered rates and current totals.
type ShippingView struct {
	Step    Step                  `json:"step"`
	Rates   []models.ShippingRate `json:"rates"`
	Totals  Totals                `json:"totals"`
	Warning string                `json:"warning,omitempty"`
	Virtual bool                  `json:"virtual"`
}

type Service struct {
	settings   payment.SettingsResolver
	store      QuoteStore
	newCharger ChargerFactory
}

func NewService(settings payment.SettingsResolver, store QuoteStore, newCharger ChargerFactory) *Service {
	return &Service{
		settings:   settings,
		store:      store,
		newCharger: newCharger,
	}
}

func (s *Service) Button(ctx context.Context, storeID int64) (*Button, error) {
	settings, err := s.settings.Resolve(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return &Button{
		Enabled: settings.ExpressEnabled(),
		PDP:     settings.ExpressEnabledPDP(),
		Cart:    settings.ExpressEnabledCart(),
	}, nil
}

func (s *Service) guard(ctx context.Context, st *State) error {
	settings, err := s.settings.Resolve(ctx, st.StoreID)
	if err != nil {
		return fmt.Errorf("failed to resolve express settings: %w", err)
	}
	if !settings.PayPal.ExpressActive {
		return ErrUnavailable
	}
	return nil
}

// quote loads the quote the flow works on: the cart quote for cart
// sources, the express quote from the session, or a fresh one.
func (s *Service) quote(ctx context.Context, st *State) (*models.Quote, error) {
	if st.Source == SourceCart {
		if st.CartQuoteID == 0 {
			return nil, flowError(MsgRequestFailed, errors.New("no cart quote in session"))
		}
		return s.store.GetQuote(ctx, st.CartQuoteID)
	}

	if st.QuoteID > 0 {
		return s.store.GetQuote(ctx, st.QuoteID)
	}

	reserved, err := s.store.ReserveOrderID(ctx, st.StoreID)
	if err != nil {
		return nil, err
	}
	return &models.Quote{
		StoreID:           st.StoreID,
		IsActive:          true,
		ReservedOrderID:   reserved,
		BaseCurrencyCode:  st.BaseCurrency,
		QuoteCurrencyCode: currencyOr(st.Currency, st.BaseCurrency),
	}, nil
}

// existingQuote loads the quote created by the authorization step.
func (s *Service) existingQuote(ctx context.Context, st *State) (*models.Quote, error) {
	if st.Source != SourceCart && st.QuoteID == 0 {
		return nil, flowError(MsgRequestFailed, errors.New("no express quote in session"))
	}
	q, err := s.quote(ctx, st)
	if err != nil {
		return nil, err
	}
	if !q.IsActive {
		return nil, flowError(MsgRequestFailed, fmt.Errorf("quote %d is no longer active", q.ID))
	}
	return q, nil
}

// Authorize starts the flow from the PayPal button response and prepares the
// quote with the shopper's PayPal address.
func (s *Service) Authorize(ctx context.Context, st *State, req *types.ExpressAuthorizationRequest) (Step, error) {
	if err := s.guard(ctx, st); err != nil {
		return StepError, err
	}

	if st.FormKey == "" || st.FormKey != req.FormData.FormKey {
		return StepError, flowError(MsgStartFailed, nil)
	}

	st.QuoteID = 0
	st.Nonce = ""

	st.Source = req.FormData.Source
	if st.Source == "" {
		st.Source = SourceProduct
	}

	paypal := req.PayPal
	if paypal.Nonce == "" {
		return StepError, flowError(MsgPayPalResponse, nil)
	}
	if paypal.Details.ShippingAddress == nil || paypal.Details.Email == "" {
		return StepError, flowError(MsgShippingAddress, nil)
	}
	st.Nonce = paypal.Nonce

	q, err := s.quote(ctx, st)
	if err != nil {
		return StepError, asFlowError(err)
	}

	if st.Customer != nil {
		q.CustomerID = st.Customer.ID
		q.CustomerEmail = st.Customer.Email
		q.CustomerFirstname = st.Customer.FirstName
		q.CustomerLastname = st.Customer.LastName
	} else {
		q.CustomerEmail = paypal.Details.Email
	}

	if req.FormData.Product > 0 {
		product, err := s.store.GetProduct(ctx, req.FormData.Product)
		if err != nil {
			return StepError, flowError(MsgProductLoad, err)
		}
		if err := addProduct(q, product, req.FormData.Qty); err != nil {
			return StepError, flowError(MsgRequestFailed, err)
		}
	}

	address := addressFromPayPal(paypal.Details)

	required, err := s.store.RegionRequired(ctx, address.CountryID)
	if err != nil {
		return StepError, flowError(MsgRequestFailed, err)
	}
	if required {
		region, err := s.store.FindRegion(ctx, address.CountryID, paypal.Details.ShippingAddress.Region)
		if err != nil || region == nil || region.ID == 0 {
			return StepError, flowError(MsgCountry, err)
		}
		address.RegionID = region.ID
		address.RegionCode = region.Code
		address.Region = region.Name
	}

	q.ShippingAddress = address
	q.BillingAddress = copyAddress(address)

	rates, err := s.shippingRates(ctx, q)
	if err != nil {
		return StepError, flowError(MsgRequestFailed, err)
	}
	if err := s.collectTotals(ctx, q, rates); err != nil {
		return StepError, flowError(MsgRequestFailed, err)
	}
	if err := s.store.SaveQuote(ctx, q); err != nil {
		return StepError, flowError(MsgRequestFailed, err)
	}
	st.QuoteID = q.ID

	logger.Info(ctx, "Express checkout authorized",
		zap.Int64("quote_id", q.ID),
		zap.String("source", st.Source),
		zap.String("country", address.CountryID),
		zap.Int("items", len(q.Items)))

	return StepShipping, nil
}

// Shipping lists the rates for the quote and, when a method is submitted,
// applies it and moves on to payment.
func (s *Service) Shipping(ctx context.Context, st *State, sel types.ShippingSelection) (*ShippingView, error) {
	q, rates, err := s.prepareShipping(ctx, st)
	if err != nil {
		return nil, err
	}

	view := &ShippingView{Step: StepShipping, Virtual: q.IsVirtual()}

	if sel.SubmitShipping != "" {
		if q.IsVirtual() {
			view.Step = StepProcess
			view.Totals = totalsOf(q)
			return view, nil
		}

		if applied, err := s.applyShippingMethod(ctx, q, rates, sel.ShippingMethod); err != nil {
			return nil, err
		} else if applied {
			view.Step = StepProcess
			view.Totals = totalsOf(q)
			return view, nil
		}

		view.Warning = MsgSelectShipping
	}

	view.Rates = rates
	view.Totals = totalsOf(q)
	return view, nil
}

// SaveShipping applies a submitted method without leaving the shipping step
// and returns the new totals.
func (s *Service) SaveShipping(ctx context.Context, st *State, sel types.ShippingSelection) (*Totals, error) {
	q, rates, err := s.prepareShipping(ctx, st)
	if err != nil {
		return nil, err
	}

	if sel.SubmitShipping != "" {
		if _, err := s.applyShippingMethod(ctx, q, rates, sel.ShippingMethod); err != nil {
			return nil, err
		}
	}

	totals := totalsOf(q)
	return &totals, nil
}

// prepareShipping loads the quote, recollects its rates and totals and
// saves it.
func (s *Service) prepareShipping(ctx context.Context, st *State) (*models.Quote, []models.ShippingRate, error) {
	if err := s.guard(ctx, st); err != nil {
		return nil, nil, err
	}

	q, err := s.existingQuote(ctx, st)
	if err != nil {
		return nil, nil, asFlowError(err)
	}

	rates, err := s.shippingRates(ctx, q)
	if err != nil {
		return nil, nil, flowError(MsgRequestFailed, err)
	}
	if err := s.collectTotals(ctx, q, rates); err != nil {
		return nil, nil, flowError(MsgRequestFailed, err)
	}
	if err := s.store.SaveQuote(ctx, q); err != nil {
		return nil, nil, flowError(MsgRequestFailed, err)
	}
	return q, rates, nil
}

func (s *Service) applyShippingMethod(ctx context.Context, q *models.Quote, rates []models.ShippingRate, method string) (bool, error) {
	if method == "" {
		return false, nil
	}
	if _, ok := rateByCode(rates, method); !ok {
		return false, nil
	}

	q.ShippingMethod = method
	if err := s.collectTotals(ctx, q, rates); err != nil {
		return false, flowError(MsgRequestFailed, err)
	}
	if err := s.store.SaveQuote(ctx, q); err != nil {
		return false, flowError(MsgRequestFailed, err)
	}
	return true, nil
}

// Process converts the quote into an order, takes the PayPal payment and
// persists both. The payment is attempted exactly once.
func (s *Service) Process(ctx context.Context, st *State) (*models.Order, error) {
	if err := s.guard(ctx, st); err != nil {
		return nil, err
	}

	q, err := s.existingQuote(ctx, st)
	if err != nil {
		return nil, asFlowError(err)
	}
	if len(q.Items) == 0 {
		return nil, flowError(MsgRequestFailed, fmt.Errorf("quote %d has no items", q.ID))
	}

	rates, err := s.shippingRates(ctx, q)
	if err != nil {
		return nil, flowError(MsgRequestFailed, err)
	}
	if err := s.collectTotals(ctx, q, rates); err != nil {
		return nil, flowError(MsgRequestFailed, err)
	}
	if !q.IsVirtual() && q.ShippingMethod == "" {
		return nil, flowError(MsgSpecifyShipping, nil)
	}

	if q.ReservedOrderID == "" {
		if q.ReservedOrderID, err = s.store.ReserveOrderID(ctx, q.StoreID); err != nil {
			return nil, flowError(MsgRequestFailed, err)
		}
	}
	q.PaymentMethod = models.MethodPayPal
	q.PaymentNonce = st.Nonce
	if err := s.store.SaveQuote(ctx, q); err != nil {
		return nil, flowError(MsgRequestFailed, err)
	}

	order := toOrder(q)

	checkout := &payment.CheckoutContext{
		StoreID:        st.StoreID,
		CheckoutMethod: payment.CheckoutMethodGuest,
		CurrencyCode:   q.QuoteCurrencyCode,
	}
	if st.Customer != nil {
		checkout.CustomerID = st.Customer.ID
		checkout.CheckoutMethod = payment.CheckoutMethodLoginIn
	}

	charger, err := s.newCharger(ctx, checkout)
	if err != nil {
		return nil, asFlowError(err)
	}

	p := &models.Payment{Method: charger.Code()}
	if err := charger.Pay(ctx, p, order, q.PaymentNonce, order.BaseGrandTotal); err != nil {
		logger.Warn(ctx, "Express payment failed",
			zap.String("order_id", order.IncrementID),
			zap.Error(err))
		return nil, asFlowError(err)
	}

	order.State = payment.OrderStateFor(p)
	order.Status = order.State

	if err := s.store.SubmitOrder(ctx, order, p); err != nil {
		logger.Error(ctx, "Express order charged but not saved", err,
			zap.String("order_id", order.IncrementID),
			zap.String("transaction_id", p.TransactionID))
		return nil, flowError(MsgOrderNotPersisted, err)
	}

	st.reset()
	st.LastQuoteID = q.ID
	st.LastOrderID = order.ID
	st.LastIncrementID = order.IncrementID

	logger.Info(ctx, "Express order placed",
		zap.Int64("order_id", order.ID),
		zap.String("increment_id", order.IncrementID),
		zap.String("state", order.State),
		zap.String("amount", order.BaseGrandTotal.StringFixed(2)))

	return order, nil
}

// asFlowError keeps shopper-facing payment messages and hides anything else
// behind the generic retry message.
func asFlowError(err error) error {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr
	}
	var payErr *payment.Error
	if errors.As(err, &payErr) {
		return flowError(payErr.UserMessage(), err)
	}
	return flowError(MsgRequestFailed, err)
}

func currencyOr(code, fallback string) string {
	if code != "" {
		return code
	}
	return fallback
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment/braintree"
)

const (
	CheckoutMethodGuest    = "guest"
	CheckoutMethodRegister = "register"
	CheckoutMethodLoginIn  = "login_in"

	configInvalidTitle = "Braintree Configuration Invalid"
)

// CheckoutContext is the request scope the wrapper works in.
type CheckoutContext struct {
	StoreID        int64
	IsAdmin        bool
	CustomerID     int64
	CheckoutMethod string
	// SessionBraintreeID is read from and written back to the checkout session.
	SessionBraintreeID string
	CurrencyCode       string
	AdminCurrencyCode  string
}

func (c *CheckoutContext) loggedIn() bool {
	return c.CustomerID > 0
}

func (c *CheckoutContext) registering() bool {
	return c.CheckoutMethod == CheckoutMethodRegister || c.CheckoutMethod == CheckoutMethodLoginIn
}

type customerLookup struct {
	customer *braintree.Customer
	found    bool
}

// Wrapper holds everything one request needs to talk to Braintree for a
// store. It is not safe for concurrent use.
type Wrapper struct {
	gateway  Gateway
	settings *models.PaymentSettings
	store    Store
	checkout *CheckoutContext

	braintreeID string
	customers   map[string]customerLookup
	validated   *bool
}

func NewWrapper(gateway Gateway, settings *models.PaymentSettings, store Store, checkout *CheckoutContext) *Wrapper {
	if checkout == nil {
		checkout = &CheckoutContext{}
	}
	return &Wrapper{
		gateway:   gateway,
		settings:  settings,
		store:     store,
		checkout:  checkout,
		customers: make(map[string]customerLookup),
	}
}

func (w *Wrapper) Settings() *models.PaymentSettings {
	return w.settings
}

func (w *Wrapper) Checkout() *CheckoutContext {
	return w.checkout
}

func buildCustomerID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// BraintreeID returns the vault customer id for the shopper, creating one
// for logged in customers and registering guests. Plain guests get "".
func (w *Wrapper) BraintreeID(ctx context.Context) (string, error) {
	if w.braintreeID != "" {
		return w.braintreeID, nil
	}

	switch {
	case w.checkout.loggedIn():
		id, err := w.store.GetCustomerBraintreeID(ctx, w.checkout.CustomerID)
		if err != nil {
			return "", fmt.Errorf("failed to load braintree customer id: %w", err)
		}
		if id == "" {
			id = buildCustomerID()
			if err := w.store.SetCustomerBraintreeID(ctx, w.checkout.CustomerID, id); err != nil {
				return "", fmt.Errorf("failed to save braintree customer id: %w", err)
			}
		}
		w.braintreeID = id
	case w.checkout.registering():
		if w.checkout.SessionBraintreeID == "" {
			w.checkout.SessionBraintreeID = buildCustomerID()
		}
		w.braintreeID = w.checkout.SessionBraintreeID
	}

	return w.braintreeID, nil
}

// customer looks up a vault customer once per request.
func (w *Wrapper) customer(ctx context.Context, braintreeID string) (*braintree.Customer, bool) {
	if lookup, ok := w.customers[braintreeID]; ok {
		return lookup.customer, lookup.found
	}

	customer, err := w.gateway.FindCustomer(ctx, braintreeID)
	if err != nil {
		if !errors.Is(err, braintree.ErrNotFound) {
			logger.Warn(ctx, "Braintree customer lookup failed", zap.Error(err))
		}
		w.customers[braintreeID] = customerLookup{}
		return nil, false
	}

	w.customers[braintreeID] = customerLookup{customer: customer, found: true}
	return customer, true
}

// CheckIsCustomer reports whether the shopper already exists in the vault.
func (w *Wrapper) CheckIsCustomer(ctx context.Context) bool {
	id, err := w.BraintreeID(ctx)
	if err != nil {
		logger.Warn(ctx, "Could not resolve braintree customer id", zap.Error(err))
		return false
	}
	if id == "" {
		return false
	}
	_, found := w.customer(ctx, id)
	return found
}

// CustomerOwnsMethod checks a stored method belongs to the logged in customer.
func (w *Wrapper) CustomerOwnsMethod(ctx context.Context, method *braintree.PaymentMethod) bool {
	if method == nil || !w.checkout.loggedIn() {
		return false
	}

	customerID, err := w.store.GetCustomerBraintreeID(ctx, w.checkout.CustomerID)
	if err != nil || customerID == "" {
		return false
	}

	if method.Type == braintree.PaymentMethodPayPalAccount {
		customer, found := w.customer(ctx, customerID)
		if !found {
			return false
		}
		for _, account := range customer.PayPalAccounts {
			if account.Token != "" && account.Token == method.Token {
				return true
			}
		}
		return false
	}

	return method.CustomerID == customerID
}

// OwnsToken reports whether token is one of the logged in customer's vaulted
// payment methods.
func (w *Wrapper) OwnsToken(ctx context.Context, token string) bool {
	if token == "" || !w.checkout.loggedIn() {
		return false
	}

	customerID, err := w.store.GetCustomerBraintreeID(ctx, w.checkout.CustomerID)
	if err != nil || customerID == "" {
		return false
	}
	customer, found := w.customer(ctx, customerID)
	if !found {
		return false
	}

	methods := make([]braintree.PaymentMethod, 0, len(customer.CreditCards)+len(customer.PayPalAccounts))
	methods = append(methods, customer.CreditCards...)
	methods = append(methods, customer.PayPalAccounts...)
	for i := range methods {
		if methods[i].Token != token {
			continue
		}
		if methods[i].CustomerID == "" {
			methods[i].CustomerID = customer.ID
		}
		return w.CustomerOwnsMethod(ctx, &methods[i])
	}
	return false
}

// CurrencyCode is the currency the shopper pays in: the posted order
// currency in admin, the storefront currency otherwise.
func (w *Wrapper) CurrencyCode() string {
	if w.checkout.IsAdmin {
		return w.checkout.AdminCurrencyCode
	}
	return w.checkout.CurrencyCode
}

func (w *Wrapper) currencyMappingEnabled() bool {
	return w.settings.MultiCurrencyEnabled &&
		len(w.settings.CurrencyMapping) > 0 &&
		w.CurrencyCode() != ""
}

// HasMappedCurrencyCode returns the merchant account mapped to the current
// currency, if any.
func (w *Wrapper) HasMappedCurrencyCode() (string, bool) {
	if !w.currencyMappingEnabled() {
		return "", false
	}
	account := strings.TrimSpace(w.settings.CurrencyMapping[w.CurrencyCode()])
	if account == "" {
		return "", false
	}
	return account, true
}

func (w *Wrapper) MerchantAccountID() string {
	if account, ok := w.HasMappedCurrencyCode(); ok {
		return account
	}
	return w.settings.Credentials.MerchantAccountID
}

// CaptureAmount converts amount from the order base currency into the mapped
// currency. Unmapped amounts come back untouched.
func (w *Wrapper) CaptureAmount(ctx context.Context, order *models.Order, amount decimal.Decimal) (decimal.Decimal, error) {
	if _, ok := w.HasMappedCurrencyCode(); !ok {
		return amount, nil
	}

	target := w.CurrencyCode()
	if strings.EqualFold(order.BaseCurrencyCode, target) {
		return amount.Round(2), nil
	}

	rate, err := w.store.GetCurrencyRate(ctx, order.BaseCurrencyCode, target)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load rate %s->%s: %w", order.BaseCurrencyCode, target, err)
	}
	return amount.Mul(rate).Round(2), nil
}

func (w *Wrapper) MakeSale(ctx context.Context, req *SaleRequest) (*braintree.TransactionResult, error) {
	return w.gateway.Sale(ctx, req)
}

func (w *Wrapper) SubmitForSettlement(ctx context.Context, transactionID string, amount decimal.Decimal) (*braintree.TransactionResult, error) {
	return w.gateway.SubmitForSettlement(ctx, transactionID, amount)
}

func (w *Wrapper) FindTransaction(ctx context.Context, transactionID string) (*braintree.Transaction, error) {
	return w.gateway.FindTransaction(ctx, transactionID)
}

// GenerateToken returns a client token bound to the current merchant account.
func (w *Wrapper) GenerateToken(ctx context.Context) (string, error) {
	return w.gateway.GenerateClientToken(ctx, w.MerchantAccountID())
}

// GetThreeDSecureVaultNonce builds a nonce for a stored card so it can go
// through 3-D Secure again.
func (w *Wrapper) GetThreeDSecureVaultNonce(ctx context.Context, token string) (string, error) {
	return w.gateway.CreatePaymentMethodNonce(ctx, token)
}

type CredentialStatus int

const (
	CredentialsValid CredentialStatus = iota
	CredentialsInvalid
	MerchantAccountInvalid
)

func (s CredentialStatus) String() string {
	switch s {
	case CredentialsValid:
		return "Valid Credentials"
	case CredentialsInvalid:
		return "Invalid Credentials"
	default:
		return "Invalid Merchant Account ID"
	}
}

// Message is the explanation shown under the status in admin.
func (s CredentialStatus) Message() string {
	switch s {
	case CredentialsValid:
		return "You're ready to accept payments via Braintree"
	case CredentialsInvalid:
		return "Payments cannot be processed until this is resolved, due to this the methods will be hidden within the checkout"
	default:
		return "Payments cannot be processed until this is resolved. We cannot find your merchant account ID associated with the other credentials you've provided, please update this field"
	}
}

// ValidateCredentials checks the keys and merchant account against the
// gateway. An empty merchantAccountID validates the current one.
func (w *Wrapper) ValidateCredentials(ctx context.Context, merchantAccountID string) CredentialStatus {
	if !w.settings.HasCredentials() {
		return CredentialsInvalid
	}
	if merchantAccountID == "" {
		merchantAccountID = w.MerchantAccountID()
	}

	if _, err := w.gateway.FindMerchantAccount(ctx, merchantAccountID); err != nil {
		var gwErr *braintree.GatewayError
		if errors.As(err, &gwErr) &&
			(gwErr.StatusCode == http.StatusUnauthorized || gwErr.StatusCode == http.StatusForbidden) {
			return CredentialsInvalid
		}
		logger.Warn(ctx, "Braintree merchant account validation failed",
			zap.Int64("store_id", w.settings.StoreID),
			zap.String("merchant_account_id", merchantAccountID),
			zap.Error(err))
		return MerchantAccountInvalid
	}
	return CredentialsValid
}

// ValidateCredentialsOnce validates at most once per wrapper and raises an
// admin notice when the store configuration is broken.
func (w *Wrapper) ValidateCredentialsOnce(ctx context.Context) bool {
	if w.validated != nil {
		return *w.validated
	}

	valid := w.settings.HasCredentials()
	if valid && w.ValidateCredentials(ctx, "") != CredentialsValid {
		valid = false
		w.addConfigInvalidNotice(ctx)
	}

	w.validated = &valid
	return valid
}

func (w *Wrapper) addConfigInvalidNotice(ctx context.Context) {
	latest, err := w.store.LatestAdminNotice(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to load latest admin notice", err)
		return
	}
	if latest != nil && strings.Contains(latest.Title, configInvalidTitle) {
		return
	}

	storeName := w.settings.StoreName
	notice := &models.AdminNotice{
		Severity: models.NoticeSeverityMajor,
		Title:    fmt.Sprintf("%s - %s - This could be stopping payments", configInvalidTitle, storeName),
		Description: fmt.Sprintf("The configuration values in the Braintree module are incorrect, until these values are corrected the system can not function. This occurred on store %s - ID: %d",
			storeName, w.settings.StoreID),
	}
	if err := w.store.AddAdminNotice(ctx, notice); err != nil {
		logger.Error(ctx, "Failed to add admin notice", err)
	}
}

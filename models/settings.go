package models

const (
	PaymentActionAuthorize        = "authorize"
	PaymentActionAuthorizeCapture = "authorize_capture"
)

// GatewayCredentials are the Braintree API keys for one store.
type GatewayCredentials struct {
	Environment       string `json:"environment"`
	MerchantID        string `json:"merchant_id"`
	PublicKey         string `json:"public_key"`
	PrivateKey        string `json:"-"`
	MerchantAccountID string `json:"merchant_account_id"`
}

type CreditCardSettings struct {
	Active        bool   `json:"active"`
	UseVault      bool   `json:"use_vault"`
	ThreeDSecure  bool   `json:"threedsecure"`
	UseCCV        bool   `json:"useccv"`
	PaymentAction string `json:"payment_action"`
}

type PayPalSettings struct {
	Active        bool   `json:"active"`
	ExpressActive bool   `json:"express_active"`
	ExpressPDP    bool   `json:"express_pdp"`
	ExpressCart   bool   `json:"express_cart"`
	PaymentAction string `json:"payment_action"`
}

// PaymentSettings is everything the payment methods need for one store.
type PaymentSettings struct {
	StoreID              int64              `json:"store_id"`
	StoreName            string             `json:"store_name"`
	Credentials          GatewayCredentials `json:"credentials"`
	MultiCurrencyEnabled bool               `json:"multi_currency_enable"`
	CurrencyMapping      map[string]string  `json:"multi_currency_mapping"`
	CreditCard           CreditCardSettings `json:"creditcard"`
	PayPal               PayPalSettings     `json:"paypal"`
}

// HasCredentials is true when every key needed to talk to the gateway is set.
func (s *PaymentSettings) HasCredentials() bool {
	c := s.Credentials
	return c.Environment != "" && c.MerchantID != "" && c.PublicKey != "" && c.PrivateKey != ""
}

// ExpressEnabled mirrors the express button rule: PayPal and express both on.
func (s *PaymentSettings) ExpressEnabled() bool {
	return s.PayPal.Active && s.PayPal.ExpressActive
}

func (s *PaymentSettings) ExpressEnabledPDP() bool {
	return s.ExpressEnabled() && s.PayPal.ExpressPDP
}

func (s *PaymentSettings) ExpressEnabledCart() bool {
	return s.ExpressEnabled() && s.PayPal.ExpressCart
}

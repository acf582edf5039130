package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs the struct tags below and flattens failures into one message.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Stored-card selector values sent by the checkout form instead of a real token.
const (
	TokenOther        = "other"
	TokenThreeDSecure = "threedsecure"
)

// PaymentPost is the payment block posted by the checkout form. Token is a
// pointer so "not sent" and "sent empty" stay distinguishable.
type PaymentPost struct {
	PaymentMethodNonce     string  `json:"payment_method_nonce" validate:"omitempty,max=4096"`
	CardPaymentMethodToken *string `json:"card_payment_method_token,omitempty" validate:"omitempty,max=64"`
	CcCid                  *string `json:"cc_cid,omitempty" validate:"omitempty,numeric,min=3,max=4"`
	DeviceData             string  `json:"device_data,omitempty" validate:"omitempty,max=8192"`
	SaveCard               int     `json:"save_card,omitempty" validate:"oneof=0 1"`
}

// Token returns the posted token and whether the field was present.
func (p *PaymentPost) Token() (string, bool) {
	if p.CardPaymentMethodToken == nil {
		return "", false
	}
	return *p.CardPaymentMethodToken, true
}

// CVV returns the posted CVV and whether the field was present.
func (p *PaymentPost) CVV() (string, bool) {
	if p.CcCid == nil {
		return "", false
	}
	return *p.CcCid, true
}

// AdminPaymentPost is PaymentPost plus the currency the admin order form posts.
type AdminPaymentPost struct {
	PaymentPost
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type TokenizeRequest struct {
	Tokens []string `json:"tokens" validate:"required,min=1,max=20,dive,required,max=64"`
}

// PayPalShippingAddress is the address block PayPal returns to the button.
type PayPalShippingAddress struct {
	RecipientName     string `json:"recipientName"`
	StreetAddress     string `json:"streetAddress"`
	ExtendedAddress   string `json:"extendedAddress"`
	Locality          string `json:"locality"`
	CountryCodeAlpha2 string `json:"countryCodeAlpha2"`
	PostalCode        string `json:"postalCode"`
	Region            string `json:"region"`
}

type PayPalDetails struct {
	Email           string                 `json:"email"`
	FirstName       string                 `json:"firstName"`
	LastName        string                 `json:"lastName"`
	PayerID         string                 `json:"payerId"`
	ShippingAddress *PayPalShippingAddress `json:"shippingAddress"`
}

// PayPalAuthorization is the tokenize payload from the PayPal button.
type PayPalAuthorization struct {
	Nonce   string        `json:"nonce"`
	Details PayPalDetails `json:"details"`
}

// ExpressForm is the product/cart form serialized next to the PayPal button.
type ExpressForm struct {
	FormKey string `json:"form_key"`
	Source  string `json:"source"`
	Product int64  `json:"product"`
	Qty     int    `json:"qty"`
}

// ExpressAuthorizationRequest is the body of the express authorization step.
type ExpressAuthorizationRequest struct {
	FormData ExpressForm         `json:"form_data"`
	PayPal   PayPalAuthorization `json:"paypal"`
}

type ShippingSelection struct {
	SubmitShipping string `json:"submit_shipping"`
	ShippingMethod string `json:"shipping_method" validate:"omitempty,max=128"`
}

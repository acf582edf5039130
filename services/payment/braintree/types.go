package braintree

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction statuses returned by the gateway.
const (
	StatusAuthorizing            = "authorizing"
	StatusAuthorized             = "authorized"
	StatusSubmittedForSettlement = "submitted_for_settlement"
	StatusSettling               = "settling"
	StatusSettled                = "settled"
	StatusVoided                 = "voided"
	StatusProcessorDeclined      = "processor_declined"
	StatusGatewayRejected        = "gateway_rejected"
	StatusFailed                 = "failed"
	StatusSettlementDeclined     = "settlement_declined"
)

// Gateway rejection reasons.
const (
	RejectionAVS          = "avs"
	RejectionCVV          = "cvv"
	RejectionFraud        = "fraud"
	RejectionThreeDSecure = "three_d_secure"
)

// Risk decisions from the fraud screen.
const (
	RiskApprove      = "Approve"
	RiskReview       = "Review"
	RiskDecline      = "Decline"
	RiskNotEvaluated = "Not Evaluated"
)

type AddressRequest struct {
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	Company           string `json:"company,omitempty"`
	StreetAddress     string `json:"streetAddress,omitempty"`
	ExtendedAddress   string `json:"extendedAddress,omitempty"`
	Locality          string `json:"locality,omitempty"`
	Region            string `json:"region,omitempty"`
	PostalCode        string `json:"postalCode,omitempty"`
	CountryCodeAlpha2 string `json:"countryCodeAlpha2,omitempty"`
}

type CustomerRequest struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type CreditCardRequest struct {
	CVV string `json:"cvv,omitempty"`
}

type ThreeDSecureOptions struct {
	Required bool `json:"required"`
}

type TransactionOptions struct {
	SubmitForSettlement bool                 `json:"submitForSettlement"`
	StoreInVault        bool                 `json:"storeInVault"`
	ThreeDSecure        *ThreeDSecureOptions `json:"threeDSecure,omitempty"`
}

// TransactionRequest is the sale payload.
type TransactionRequest struct {
	Type               string              `json:"type"`
	Amount             decimal.Decimal     `json:"amount"`
	OrderID            string              `json:"orderId,omitempty"`
	MerchantAccountID  string              `json:"merchantAccountId,omitempty"`
	Channel            string              `json:"channel,omitempty"`
	PaymentMethodNonce string              `json:"paymentMethodNonce,omitempty"`
	PaymentMethodToken string              `json:"paymentMethodToken,omitempty"`
	CreditCard         *CreditCardRequest  `json:"creditCard,omitempty"`
	Customer           *CustomerRequest    `json:"customer,omitempty"`
	Billing            *AddressRequest     `json:"billing,omitempty"`
	Shipping           *AddressRequest     `json:"shipping,omitempty"`
	DeviceData         string              `json:"deviceData,omitempty"`
	Options            *TransactionOptions `json:"options,omitempty"`
}

type PaymentMethodRequest struct {
	CustomerID         string          `json:"customerId"`
	PaymentMethodNonce string          `json:"paymentMethodNonce"`
	BillingAddress     *AddressRequest `json:"billingAddress,omitempty"`
}

type CreditCard struct {
	Token           string `json:"token,omitempty"`
	CustomerID      string `json:"customerId,omitempty"`
	Bin             string `json:"bin,omitempty"`
	Last4           string `json:"last4,omitempty"`
	CardType        string `json:"cardType,omitempty"`
	ExpirationMonth string `json:"expirationMonth,omitempty"`
	ExpirationYear  string `json:"expirationYear,omitempty"`
}

type PayPalDetails struct {
	PayerEmail      string `json:"payerEmail,omitempty"`
	PaymentID       string `json:"paymentId,omitempty"`
	AuthorizationID string `json:"authorizationId,omitempty"`
	Token           string `json:"token,omitempty"`
}

type ThreeDSecureInfo struct {
	Status                 string `json:"status,omitempty"`
	Enrolled               string `json:"enrolled,omitempty"`
	LiabilityShifted       bool   `json:"liabilityShifted"`
	LiabilityShiftPossible bool   `json:"liabilityShiftPossible"`
}

type RiskData struct {
	ID                 string `json:"id,omitempty"`
	Decision           string `json:"decision,omitempty"`
	DeviceDataCaptured bool   `json:"deviceDataCaptured"`
}

type Transaction struct {
	ID                              string            `json:"id"`
	Type                            string            `json:"type"`
	Status                          string            `json:"status"`
	Amount                          decimal.Decimal   `json:"amount"`
	CurrencyIsoCode                 string            `json:"currencyIsoCode,omitempty"`
	MerchantAccountID               string            `json:"merchantAccountId,omitempty"`
	OrderID                         string            `json:"orderId,omitempty"`
	CreditCard                      *CreditCard       `json:"creditCard,omitempty"`
	PayPal                          *PayPalDetails    `json:"paypal,omitempty"`
	AVSErrorResponseCode            string            `json:"avsErrorResponseCode,omitempty"`
	AVSPostalCodeResponseCode       string            `json:"avsPostalCodeResponseCode,omitempty"`
	AVSStreetAddressResponseCode    string            `json:"avsStreetAddressResponseCode,omitempty"`
	CVVResponseCode                 string            `json:"cvvResponseCode,omitempty"`
	GatewayRejectionReason          string            `json:"gatewayRejectionReason,omitempty"`
	ProcessorAuthorizationCode      string            `json:"processorAuthorizationCode,omitempty"`
	ProcessorResponseCode           string            `json:"processorResponseCode,omitempty"`
	ProcessorResponseText           string            `json:"processorResponseText,omitempty"`
	ProcessorSettlementResponseCode string            `json:"processorSettlementResponseCode,omitempty"`
	ProcessorSettlementResponseText string            `json:"processorSettlementResponseText,omitempty"`
	ThreeDSecureInfo                *ThreeDSecureInfo `json:"threeDSecureInfo,omitempty"`
	RiskData                        *RiskData         `json:"riskData,omitempty"`
}

type ValidationError struct {
	Attribute string `json:"attribute"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// TransactionResult mirrors the SDK result object: Success=false still may
// carry the declined transaction.
type TransactionResult struct {
	Success     bool
	Transaction *Transaction
	Message     string
	Errors      []ValidationError
}

// ErrorMessages joins the validation errors, or "" when there are none.
func (r *TransactionResult) ErrorMessages() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "\n")
}

const (
	PaymentMethodCreditCard    = "CreditCard"
	PaymentMethodPayPalAccount = "PayPalAccount"
)

type PaymentMethod struct {
	Type       string `json:"type,omitempty"`
	Token      string `json:"token"`
	CustomerID string `json:"customerId,omitempty"`
	Default    bool   `json:"default"`
	Email      string `json:"email,omitempty"`
	Last4      string `json:"last4,omitempty"`
	CardType   string `json:"cardType,omitempty"`
}

type PaymentMethodResult struct {
	Success       bool
	PaymentMethod *PaymentMethod
	Message       string
	Errors        []ValidationError
}

type Customer struct {
	ID             string          `json:"id"`
	FirstName      string          `json:"firstName,omitempty"`
	LastName       string          `json:"lastName,omitempty"`
	Email          string          `json:"email,omitempty"`
	CreditCards    []PaymentMethod `json:"creditCards,omitempty"`
	PayPalAccounts []PaymentMethod `json:"paypalAccounts,omitempty"`
}

type MerchantAccount struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CurrencyIsoCode string `json:"currencyIsoCode"`
	Default         bool   `json:"default"`
}

type transactionEnvelope struct {
	Transaction *Transaction `json:"transaction"`
}

type customerEnvelope struct {
	Customer *Customer `json:"customer"`
}

type paymentMethodEnvelope struct {
	PaymentMethod *PaymentMethod `json:"paymentMethod"`
}

type paymentMethodNonceEnvelope struct {
	PaymentMethodNonce struct {
		Nonce string `json:"nonce"`
	} `json:"paymentMethodNonce"`
}

type clientTokenEnvelope struct {
	ClientToken struct {
		Value string `json:"value"`
	} `json:"clientToken"`
}

type merchantAccountEnvelope struct {
	MerchantAccount *MerchantAccount `json:"merchantAccount"`
}

type apiErrorResponse struct {
	APIErrorResponse struct {
		Message     string            `json:"message"`
		Errors      []ValidationError `json:"errors"`
		Transaction *Transaction      `json:"transaction,omitempty"`
	} `json:"apiErrorResponse"`
}

package payment

import (
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindGateway
	KindDeclined
	KindThreeDSecure
	KindConfigInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGateway:
		return "gateway"
	case KindDeclined:
		return "declined"
	case KindThreeDSecure:
		return "three_d_secure"
	case KindConfigInvalid:
		return "config_invalid"
	default:
		return "unknown"
	}
}

// Shopper-facing messages.
const (
	MsgCardFailed        = "Your card payment has failed, please try again."
	MsgCVVRequired       = "We require a CVV when creating card transactions."
	MsgCardGatewayIssue  = "There was an issue whilst trying to process your card payment, please try again or another method."
	MsgPayPalGateway     = "There was an issue whilst trying to process your PayPal payment, please try again or another method."
	MsgDeclined          = "Your transaction has been declined, please try another payment method or contacting your issuing bank."
	MsgRetryFormat       = "%s. Please try again or attempt refreshing the page."
	MsgVaultFailedSuffix = " Please try again or attempt refreshing the page."
	MsgThreeDSecure      = "Your 3D secure verification has failed, please try using another card, or payment method."
	MsgOrderInvalid      = "Your order has become invalid, please try refreshing."
	MsgConfigInvalid     = "Payments are currently unavailable, please try again later."
	MsgAlreadyPaid       = "This order has already been paid."
	MsgNoAuthorization   = "This order has no authorization to capture."
	MsgStoredMethod      = "This saved payment method cannot be used, please choose another."
)

// Error is a payment failure carrying the message the shopper sees.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
	// Held is set when the payment was put on fraud hold despite the failure.
	Held bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindDeclined, KindThreeDSecure:
		return http.StatusPaymentRequired
	case KindGateway:
		return http.StatusBadGateway
	case KindConfigInvalid:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) UserMessage() string {
	return e.Message
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func gatewayError(message string, err error) *Error {
	return &Error{Kind: KindGateway, Message: message, Err: err}
}

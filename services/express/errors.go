package express

import (
	"errors"
	"fmt"
	"net/http"
)

// Messages flashed to the shopper before the error step.
const (
	MsgStartFailed       = "We were unable to start the express checkout."
	MsgPayPalResponse    = "We were unable to process the response from PayPal. Please try again."
	MsgShippingAddress   = "Please provide a shipping address."
	MsgProductLoad       = "We're unable to load that product."
	MsgRequestFailed     = "Sorry, we were unable to process your request. Please try again."
	MsgCountry           = "We were unable to process the country."
	MsgSelectShipping    = "Please select a shipping method."
	MsgSpecifyShipping   = "Please specify a shipping method."
	MsgOrderNotPersisted = "Your payment was taken but we could not save your order, please contact us."
)

// ErrUnavailable is returned by every step while express checkout is off.
var ErrUnavailable = errors.New("express checkout is not enabled")

// FlowError stops the flow and sends the shopper to the error step.
type FlowError struct {
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("express checkout: %s: %v", e.Message, e.Err)
	}
	return "express checkout: " + e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) StatusCode() int {
	return http.StatusBadRequest
}

func (e *FlowError) UserMessage() string {
	return e.Message
}

func flowError(message string, err error) *FlowError {
	return &FlowError{Message: message, Err: err}
}

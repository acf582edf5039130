package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment/braintree"
)

// Additional information keys stored on the payment record.
const (
	InfoThreeDSecure  = "threeDSecure"
	InfoToken         = "token"
	InfoRiskDecision  = "riskDecision"
	InfoRiskID        = "riskId"
	InfoPayPalEmail   = "paypalEmail"
	InfoPayPalPayment = "paypalPaymentId"

	threeDSecurePassed = "Passed"
)

// checkSaleResult turns an unsuccessful sale into the shopper-facing error.
func checkSaleResult(result *braintree.TransactionResult, threeDSecure bool) error {
	if result == nil {
		return gatewayError(MsgCardGatewayIssue, fmt.Errorf("empty gateway result"))
	}

	if !result.Success {
		if result.Transaction != nil && result.Transaction.Status == braintree.StatusProcessorDeclined {
			return &Error{Kind: KindDeclined, Message: MsgDeclined}
		}
		message := result.Message
		if message == "" {
			message = result.ErrorMessages()
		}
		return &Error{Kind: KindGateway, Message: fmt.Sprintf(MsgRetryFormat, message)}
	}

	if threeDSecure && result.Transaction != nil &&
		result.Transaction.GatewayRejectionReason == braintree.RejectionThreeDSecure {
		return &Error{Kind: KindThreeDSecure, Message: MsgThreeDSecure}
	}

	if result.Transaction == nil {
		return gatewayError(MsgCardGatewayIssue, fmt.Errorf("successful result without transaction"))
	}
	return nil
}

// checkSettlementResult turns a failed submit-for-settlement into an error.
func checkSettlementResult(result *braintree.TransactionResult) error {
	switch {
	case result == nil:
		return gatewayError(MsgCardGatewayIssue, fmt.Errorf("empty gateway result"))
	case result.Success && result.Transaction != nil:
		return nil
	case len(result.Errors) > 0:
		return &Error{Kind: KindGateway, Message: result.ErrorMessages()}
	case result.Transaction != nil:
		return &Error{Kind: KindGateway, Message: fmt.Sprintf("%s: %s",
			result.Transaction.ProcessorSettlementResponseCode,
			result.Transaction.ProcessorSettlementResponseText)}
	default:
		return &Error{Kind: KindGateway, Message: fmt.Sprintf(MsgRetryFormat, result.Message)}
	}
}

// processSuccessResult writes a successful transaction onto the payment.
func processSuccessResult(p *models.Payment, tx *braintree.Transaction, amount decimal.Decimal, threeDSecure bool) {
	p.Status = models.PaymentStatusApproved
	p.CcTransID = tx.ID
	p.LastTransID = tx.ID
	p.TransactionID = tx.ID
	p.IsTransactionClosed = false
	p.Amount = amount
	p.ShouldCloseParentTransaction = false

	if card := tx.CreditCard; card != nil {
		p.CcLast4 = card.Last4
		p.CcType = card.CardType
		p.CcExpMonth = card.ExpirationMonth
		p.CcExpYear = card.ExpirationYear
	}

	if threeDSecure {
		p.SetAdditionalInformation(InfoThreeDSecure, threeDSecurePassed)
	}

	recordResponseCodes(p, tx)

	if tx.CreditCard != nil && tx.CreditCard.Token != "" {
		p.SetAdditionalInformation(InfoToken, tx.CreditCard.Token)
	}

	if pp := tx.PayPal; pp != nil {
		if pp.PayerEmail != "" {
			p.SetAdditionalInformation(InfoPayPalEmail, pp.PayerEmail)
		}
		if pp.PaymentID != "" {
			p.SetAdditionalInformation(InfoPayPalPayment, pp.PaymentID)
		}
	}

	applyRiskDecision(p, tx.RiskData)
}

func recordResponseCodes(p *models.Payment, tx *braintree.Transaction) {
	fields := []struct {
		key   string
		value string
	}{
		{"avsErrorResponseCode", tx.AVSErrorResponseCode},
		{"avsPostalCodeResponseCode", tx.AVSPostalCodeResponseCode},
		{"avsStreetAddressResponseCode", tx.AVSStreetAddressResponseCode},
		{"cvvResponseCode", tx.CVVResponseCode},
		{"gatewayRejectionReason", tx.GatewayRejectionReason},
		{"processorAuthorizationCode", tx.ProcessorAuthorizationCode},
		{"processorResponseCode", tx.ProcessorResponseCode},
		{"processorResponseText", tx.ProcessorResponseText},
	}
	for _, f := range fields {
		if f.value != "" {
			p.SetAdditionalInformation(f.key, f.value)
		}
	}
}

// applyRiskDecision holds a payment for review when the fraud screen did not
// approve it. The transaction id stays recorded.
func applyRiskDecision(p *models.Payment, risk *braintree.RiskData) {
	if risk == nil || risk.Decision == "" {
		return
	}

	p.SetAdditionalInformation(InfoRiskDecision, risk.Decision)
	if risk.ID != "" {
		p.SetAdditionalInformation(InfoRiskID, risk.ID)
	}

	if riskHold(risk) {
		p.Status = models.PaymentStatusPending
		p.IsTransactionPending = true
		p.IsFraudDetected = true
	}
}

func releaseHold(p *models.Payment) {
	p.Status = models.PaymentStatusApproved
	p.IsTransactionPending = false
	p.IsFraudDetected = false
}

func riskHold(risk *braintree.RiskData) bool {
	if risk == nil {
		return false
	}
	return strings.EqualFold(risk.Decision, braintree.RiskReview) || strings.EqualFold(risk.Decision, braintree.RiskDecline)
}

// holdFailedSale records an unsuccessful sale the fraud screen flagged, so
// the order goes to payment review with the gateway transaction attached.
// Nothing was authorized, so CcTransID stays empty. It reports whether the
// payment was held.
func holdFailedSale(p *models.Payment, result *braintree.TransactionResult, amount decimal.Decimal) bool {
	if result == nil || result.Success || result.Transaction == nil || !riskHold(result.Transaction.RiskData) {
		return false
	}

	tx := result.Transaction
	p.LastTransID = tx.ID
	p.TransactionID = tx.ID
	p.Amount = amount
	p.IsTransactionClosed = true
	recordResponseCodes(p, tx)
	applyRiskDecision(p, tx.RiskData)
	return true
}

// failedSale puts p on fraud hold when the unsuccessful result carries a
// review or decline decision, and flags err so the caller saves p.
func failedSale(p *models.Payment, method string, result *braintree.TransactionResult, amount decimal.Decimal, err error) error {
	if !holdFailedSale(p, result, amount) {
		return err
	}
	p.Method = method

	var payErr *Error
	if errors.As(err, &payErr) {
		payErr.Held = true
	}
	return err
}

// HeldForReview reports whether err is a failed sale whose payment was put
// on fraud hold and must still be saved.
func HeldForReview(err error) bool {
	var payErr *Error
	return errors.As(err, &payErr) && payErr.Held
}

// OrderStateFor maps the payment outcome onto the order state.
func OrderStateFor(p *models.Payment) string {
	if p.IsFraudDetected || p.IsTransactionPending {
		return models.OrderStatePaymentReview
	}
	return models.OrderStateProcessing
}

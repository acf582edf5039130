package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment/braintree"
	"braintree-checkout-api/types"
)

func TestCheckSaleResult(t *testing.T) {
	declined := checkSaleResult(&braintree.TransactionResult{
		Message:     "Do Not Honor",
		Transaction: &braintree.Transaction{Status: braintree.StatusProcessorDeclined},
	}, false)
	declinedErr := requireKind(t, declined, KindDeclined)
	assert.Equal(t, MsgDeclined, declinedErr.Message)

	failed := checkSaleResult(&braintree.TransactionResult{Message: "Gateway Rejected: cvv"}, false)
	failedErr := requireKind(t, failed, KindGateway)
	assert.Equal(t, "Gateway Rejected: cvv. Please try again or attempt refreshing the page.", failedErr.Message)

	assert.NotEqual(t, declinedErr.Message, failedErr.Message)
}

func TestCheckSaleResult_ThreeDSecureRejection(t *testing.T) {
	result := &braintree.TransactionResult{
		Success:     true,
		Transaction: &braintree.Transaction{ID: "tx", GatewayRejectionReason: braintree.RejectionThreeDSecure},
	}

	err := checkSaleResult(result, true)
	payErr := requireKind(t, err, KindThreeDSecure)
	assert.Equal(t, MsgThreeDSecure, payErr.Message)

	assert.NoError(t, checkSaleResult(result, false))
}

func TestProcessSuccessResult(t *testing.T) {
	payment := &models.Payment{}
	tx := &braintree.Transaction{
		ID:                         "tx9",
		CVVResponseCode:            "M",
		AVSPostalCodeResponseCode:  "M",
		ProcessorAuthorizationCode: "AUTH1",
		ProcessorResponseCode:      "1000",
		ProcessorResponseText:      "Approved",
		CreditCard: &braintree.CreditCard{
			Token:           "card-token",
			Last4:           "1111",
			CardType:        "Visa",
			ExpirationMonth: "12",
			ExpirationYear:  "2030",
		},
	}

	processSuccessResult(payment, tx, amount4999, true)

	assert.Equal(t, models.PaymentStatusApproved, payment.Status)
	assert.Equal(t, "tx9", payment.CcTransID)
	assert.Equal(t, "tx9", payment.LastTransID)
	assert.Equal(t, "tx9", payment.TransactionID)
	assert.False(t, payment.IsTransactionClosed)
	assert.True(t, amount4999.Equal(payment.Amount))
	assert.Equal(t, "1111", payment.CcLast4)
	assert.Equal(t, "Visa", payment.CcType)
	assert.Equal(t, "12", payment.CcExpMonth)
	assert.Equal(t, "2030", payment.CcExpYear)

	assert.Equal(t, "Passed", payment.GetAdditionalInformation(InfoThreeDSecure))
	assert.Equal(t, "card-token", payment.GetAdditionalInformation(InfoToken))
	assert.Equal(t, "M", payment.GetAdditionalInformation("cvvResponseCode"))
	assert.Equal(t, "1000", payment.GetAdditionalInformation("processorResponseCode"))
	_, hasEmpty := payment.AdditionalInformation["avsErrorResponseCode"]
	assert.False(t, hasEmpty, "empty gateway fields are not stored")
	assert.Equal(t, models.OrderStateProcessing, OrderStateFor(payment))
}

func TestProcessSuccessResult_RiskDecisions(t *testing.T) {
	tests := []struct {
		decision string
		pending  bool
	}{
		{"Approve", false},
		{"Review", true},
		{"Decline", true},
		{"decline", true},
		{"Not Evaluated", false},
	}

	for _, tt := range tests {
		t.Run(tt.decision, func(t *testing.T) {
			payment := &models.Payment{}
			processSuccessResult(payment, &braintree.Transaction{
				ID:       "tx-risk",
				RiskData: &braintree.RiskData{ID: "risk1", Decision: tt.decision},
			}, amount4999, false)

			assert.Equal(t, "tx-risk", payment.TransactionID)
			assert.Equal(t, tt.decision, payment.GetAdditionalInformation(InfoRiskDecision))
			assert.Equal(t, "risk1", payment.GetAdditionalInformation(InfoRiskID))
			assert.Equal(t, tt.pending, payment.IsFraudDetected)
			assert.Equal(t, tt.pending, payment.IsTransactionPending)
			if tt.pending {
				assert.Equal(t, models.PaymentStatusPending, payment.Status)
				assert.Equal(t, models.OrderStatePaymentReview, OrderStateFor(payment))
			} else {
				assert.Equal(t, models.PaymentStatusApproved, payment.Status)
			}
		})
	}
}

func TestCreditCard_Authorize_DeclineRiskThroughSale(t *testing.T) {
	gw := &fakeGateway{saleResult: &braintree.TransactionResult{
		Success: true,
		Transaction: &braintree.Transaction{
			ID:       "tx-fraud",
			Status:   braintree.StatusAuthorized,
			RiskData: &braintree.RiskData{ID: "r9", Decision: braintree.RiskDecline},
		},
	}}
	payment := &models.Payment{}

	err := newCard(gw, nil, nil).Authorize(context.Background(), payment, testOrder(), &types.PaymentPost{PaymentMethodNonce: "n"}, amount4999)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.True(t, payment.IsFraudDetected)
	assert.Equal(t, "tx-fraud", payment.CcTransID)
}

func TestCreditCard_Authorize_FailedSaleHeldForFraud(t *testing.T) {
	gw := &fakeGateway{saleResult: &braintree.TransactionResult{
		Success: false,
		Message: "Gateway Rejected: fraud",
		Transaction: &braintree.Transaction{
			ID:                     "tx-fraud",
			Status:                 braintree.StatusGatewayRejected,
			GatewayRejectionReason: "fraud",
			RiskData:               &braintree.RiskData{ID: "r10", Decision: braintree.RiskDecline},
		},
	}}
	payment := &models.Payment{}

	err := newCard(gw, nil, nil).Authorize(context.Background(), payment, testOrder(), &types.PaymentPost{PaymentMethodNonce: "n"}, amount4999)
	requireKind(t, err, KindGateway)
	assert.True(t, HeldForReview(err))

	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.True(t, payment.IsFraudDetected)
	assert.True(t, payment.IsTransactionPending)
	assert.Equal(t, "tx-fraud", payment.TransactionID)
	assert.Equal(t, "tx-fraud", payment.LastTransID)
	assert.Empty(t, payment.CcTransID, "nothing was authorized")
	assert.Equal(t, models.MethodCreditCard, payment.Method)
	assert.Equal(t, braintree.RiskDecline, payment.GetAdditionalInformation(InfoRiskDecision))
	assert.Equal(t, "fraud", payment.GetAdditionalInformation("gatewayRejectionReason"))
	assert.Equal(t, models.OrderStatePaymentReview, OrderStateFor(payment))
}

func TestCreditCard_Authorize_FailedSaleWithoutRiskHold(t *testing.T) {
	gw := &fakeGateway{saleResult: &braintree.TransactionResult{
		Success: false,
		Transaction: &braintree.Transaction{
			ID:       "tx-declined",
			Status:   braintree.StatusProcessorDeclined,
			RiskData: &braintree.RiskData{Decision: "Approve"},
		},
	}}
	payment := &models.Payment{}

	err := newCard(gw, nil, nil).Authorize(context.Background(), payment, testOrder(), &types.PaymentPost{PaymentMethodNonce: "n"}, amount4999)
	requireKind(t, err, KindDeclined)
	assert.False(t, HeldForReview(err))
	assert.Empty(t, payment.TransactionID)
	assert.False(t, payment.IsFraudDetected)
}

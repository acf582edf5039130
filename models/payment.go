package models

import "github.com/shopspring/decimal"

const (
	MethodCreditCard = "gene_braintree_creditcard"
	MethodPayPal     = "gene_braintree_paypal"
)

// Payment is the order payment record the gateway result is written into.
type Payment struct {
	ID                           int64             `json:"id"`
	OrderID                      int64             `json:"order_id"`
	Method                       string            `json:"method"`
	Status                       PaymentStatus     `json:"status"`
	CcTransID                    string            `json:"cc_trans_id,omitempty"`
	LastTransID                  string            `json:"last_trans_id,omitempty"`
	TransactionID                string            `json:"transaction_id,omitempty"`
	Amount                       decimal.Decimal   `json:"amount"`
	IsTransactionClosed          bool              `json:"is_transaction_closed"`
	IsTransactionPending         bool              `json:"is_transaction_pending"`
	IsFraudDetected              bool              `json:"is_fraud_detected"`
	ShouldCloseParentTransaction bool              `json:"-"`
	CcLast4                      string            `json:"cc_last4,omitempty"`
	CcType                       string            `json:"cc_type,omitempty"`
	CcExpMonth                   string            `json:"cc_exp_month,omitempty"`
	CcExpYear                    string            `json:"cc_exp_year,omitempty"`
	AdditionalInformation        map[string]string `json:"additional_information,omitempty"`
}

// SetAdditionalInformation stores one display/audit field on the payment.
func (p *Payment) SetAdditionalInformation(key, value string) {
	if p.AdditionalInformation == nil {
		p.AdditionalInformation = make(map[string]string)
	}
	p.AdditionalInformation[key] = value
}

// GetAdditionalInformation returns the stored field or "".
func (p *Payment) GetAdditionalInformation(key string) string {
	if p.AdditionalInformation == nil {
		return ""
	}
	return p.AdditionalInformation[key]
}

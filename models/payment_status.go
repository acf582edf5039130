// models/payment_status.go
package models

type PaymentStatus string

const (
	PaymentStatusUnknown PaymentStatus = "UNKNOWN"

	PaymentStatusApproved PaymentStatus = "APPROVED"

	// Charge went through but the fraud screen asked for review or decline.
	PaymentStatusPending PaymentStatus = "PENDING"

	PaymentStatusDeclined PaymentStatus = "DECLINED"

	PaymentStatusError PaymentStatus = "ERROR"
)

func (ps PaymentStatus) String() string {
	if ps == "" {
		return string(PaymentStatusUnknown)
	}
	return string(ps)
}

func (ps PaymentStatus) IsValid() bool {
	switch ps {
	case PaymentStatusUnknown, PaymentStatusApproved, PaymentStatusPending, PaymentStatusDeclined, PaymentStatusError:
		return true
	}
	return false
}

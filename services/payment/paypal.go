package payment

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

// PayPal charges a PayPal nonce. It never vaults and never runs 3-D Secure.
type PayPal struct {
	wrapper *Wrapper
}

func NewPayPal(wrapper *Wrapper) *PayPal {
	return &PayPal{wrapper: wrapper}
}

func (m *PayPal) Code() string {
	return models.MethodPayPal
}

func (m *PayPal) IsAvailable(ctx context.Context) bool {
	if !m.wrapper.settings.PayPal.Active {
		return false
	}
	return m.wrapper.ValidateCredentialsOnce(ctx)
}

func (m *PayPal) ShouldCapture() bool {
	return m.wrapper.settings.PayPal.PaymentAction == models.PaymentActionAuthorizeCapture
}

func (m *PayPal) Authorize(ctx context.Context, p *models.Payment, order *models.Order, nonce string, amount decimal.Decimal) error {
	return m.authorize(ctx, p, order, nonce, amount, false)
}

func (m *PayPal) Capture(ctx context.Context, p *models.Payment, order *models.Order, nonce string, amount decimal.Decimal) error {
	if p.CcTransID == "" {
		return m.authorize(ctx, p, order, nonce, amount, true)
	}

	if order == nil {
		return validationError(MsgOrderInvalid)
	}
	captureAmount, err := m.wrapper.CaptureAmount(ctx, order, amount)
	if err != nil {
		return gatewayError(MsgPayPalGateway, err)
	}

	result, err := m.wrapper.SubmitForSettlement(ctx, p.CcTransID, captureAmount)
	if err != nil {
		return gatewayError(MsgPayPalGateway, err)
	}
	if err := checkSettlementResult(result); err != nil {
		return err
	}
	processSuccessResult(p, result.Transaction, captureAmount, false)
	return nil
}

// Pay authorizes or captures according to the configured payment action.
func (m *PayPal) Pay(ctx context.Context, p *models.Payment, order *models.Order, nonce string, amount decimal.Decimal) error {
	if m.ShouldCapture() {
		return m.Capture(ctx, p, order, nonce, amount)
	}
	return m.Authorize(ctx, p, order, nonce, amount)
}

func (m *PayPal) authorize(ctx context.Context, p *models.Payment, order *models.Order, nonce string, amount decimal.Decimal, shouldCapture bool) error {
	if order == nil {
		return validationError(MsgOrderInvalid)
	}
	if nonce == "" {
		return validationError("Your PayPal payment has failed, please try again.")
	}

	captureAmount, err := m.wrapper.CaptureAmount(ctx, order, amount)
	if err != nil {
		return gatewayError(MsgPayPalGateway, err)
	}

	req, err := m.wrapper.BuildSale(ctx, captureAmount, PaymentSource{Nonce: nonce}, order, SaleOptions{
		SubmitForSettlement: shouldCapture,
	})
	if err != nil {
		if payErr, ok := err.(*Error); ok {
			return payErr
		}
		return gatewayError(MsgPayPalGateway, err)
	}

	logger.Info(ctx, "Submitting PayPal sale",
		zap.String("order_id", order.IncrementID),
		zap.String("amount", captureAmount.StringFixed(2)),
		zap.Bool("capture", shouldCapture))

	result, err := m.wrapper.MakeSale(ctx, req)
	if err != nil {
		logger.Error(ctx, "PayPal sale failed", err, zap.String("order_id", order.IncrementID))
		return gatewayError(MsgPayPalGateway, err)
	}
	if err := checkSaleResult(result, false); err != nil {
		err = failedSale(p, m.Code(), result, captureAmount, err)
		if HeldForReview(err) {
			logger.Warn(ctx, "PayPal sale held for review", zap.String("order_id", order.IncrementID))
		}
		return err
	}

	p.Method = m.Code()
	processSuccessResult(p, result.Transaction, captureAmount, false)
	return nil
}

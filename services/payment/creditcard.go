package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/types"
)

type CreditCard struct {
	wrapper *Wrapper
}

func NewCreditCard(wrapper *Wrapper) *CreditCard {
	return &CreditCard{wrapper: wrapper}
}

func (m *CreditCard) Code() string {
	return models.MethodCreditCard
}

func (m *CreditCard) config() models.CreditCardSettings {
	return m.wrapper.settings.CreditCard
}

// IsAvailable is true when the method is enabled and the store's
// credentials check out.
func (m *CreditCard) IsAvailable(ctx context.Context) bool {
	if !m.config().Active {
		return false
	}
	return m.wrapper.ValidateCredentialsOnce(ctx)
}

// Is3DEnabled is never true in admin.
func (m *CreditCard) Is3DEnabled() bool {
	if m.wrapper.checkout.IsAdmin {
		return false
	}
	return m.config().ThreeDSecure
}

func (m *CreditCard) RequireCCV() bool {
	return m.config().UseCCV
}

func (m *CreditCard) IsVaultEnabled() bool {
	return m.config().UseVault
}

// ShouldCapture reports whether orders are charged immediately.
func (m *CreditCard) ShouldCapture() bool {
	return m.config().PaymentAction == models.PaymentActionAuthorizeCapture
}

func (m *CreditCard) GetThreeDSecureVaultNonce(ctx context.Context, token string) (string, error) {
	return m.wrapper.GetThreeDSecureVaultNonce(ctx, token)
}

func (m *CreditCard) Authorize(ctx context.Context, p *models.Payment, order *models.Order, post *types.PaymentPost, amount decimal.Decimal) error {
	return m.authorize(ctx, p, order, post, amount, false)
}

// Capture authorizes and captures in one sale. A payment that already has
// a transaction is refused; settling it is Settle's job.
func (m *CreditCard) Capture(ctx context.Context, p *models.Payment, order *models.Order, post *types.PaymentPost, amount decimal.Decimal) error {
	if order == nil {
		return validationError(MsgOrderInvalid)
	}
	if p.CcTransID != "" {
		return validationError(MsgAlreadyPaid)
	}
	return m.authorize(ctx, p, order, post, amount, true)
}

// Settle submits an earlier authorization for settlement. Settling is the
// merchant's review decision, so a fraud hold on the payment is released.
func (m *CreditCard) Settle(ctx context.Context, p *models.Payment, order *models.Order, amount decimal.Decimal) error {
	if order == nil {
		return validationError(MsgOrderInvalid)
	}
	if p.CcTransID == "" {
		return validationError(MsgNoAuthorization)
	}

	captureAmount, err := m.wrapper.CaptureAmount(ctx, order, amount)
	if err != nil {
		return gatewayError(MsgCardGatewayIssue, err)
	}

	result, err := m.wrapper.SubmitForSettlement(ctx, p.CcTransID, captureAmount)
	if err != nil {
		logger.Error(ctx, "Submit for settlement failed", err, zap.String("transaction_id", p.CcTransID))
		return gatewayError(MsgCardGatewayIssue, err)
	}

	if err := checkSettlementResult(result); err != nil {
		return err
	}
	processSuccessResult(p, result.Transaction, captureAmount, false)
	releaseHold(p)
	return nil
}

// paymentSource validates the posted nonce/token pair and picks what the
// sale is charged against.
func (m *CreditCard) paymentSource(post *types.PaymentPost) (PaymentSource, error) {
	token, hasToken := post.Token()

	if !hasToken || token == types.TokenThreeDSecure {
		if post.PaymentMethodNonce == "" {
			return PaymentSource{}, validationError(MsgCardFailed)
		}
	} else if token == "" {
		return PaymentSource{}, validationError(MsgCardFailed)
	}

	var source PaymentSource
	cvv, hasCVV := post.CVV()
	if m.RequireCCV() && hasCVV {
		source.CVV = cvv
	} else if m.RequireCCV() && !hasCVV && token == "" {
		return PaymentSource{}, validationError(MsgCVVRequired)
	}

	if token != "" && token != types.TokenOther && token != types.TokenThreeDSecure {
		return PaymentSource{Token: token}, nil
	}

	source.Nonce = post.PaymentMethodNonce
	if token == types.TokenThreeDSecure {
		source.CVV = ""
	}
	return source, nil
}

// threeDSecure decides whether the sale must pass 3-D Secure: stored cards
// verified through the vault nonce always do, other stored cards never do.
func (m *CreditCard) threeDSecure(post *types.PaymentPost) bool {
	token, _ := post.Token()
	switch {
	case token == types.TokenThreeDSecure:
		return !m.wrapper.checkout.IsAdmin
	case token != "" && token != types.TokenOther:
		return false
	default:
		return m.Is3DEnabled()
	}
}

func (m *CreditCard) authorize(ctx context.Context, p *models.Payment, order *models.Order, post *types.PaymentPost, amount decimal.Decimal, shouldCapture bool) error {
	if order == nil {
		return validationError(MsgOrderInvalid)
	}
	if post == nil {
		return validationError(MsgCardFailed)
	}

	source, err := m.paymentSource(post)
	if err != nil {
		logger.Info(ctx, "Card payment rejected before sale", zap.Error(err))
		return err
	}
	if source.Token != "" && !m.wrapper.OwnsToken(ctx, source.Token) {
		logger.Warn(ctx, "Stored card does not belong to the customer",
			zap.String("order_id", order.IncrementID),
			zap.Int64("customer_id", m.wrapper.checkout.CustomerID))
		return validationError(MsgStoredMethod)
	}

	threeDSecure := m.threeDSecure(post)

	captureAmount, err := m.wrapper.CaptureAmount(ctx, order, amount)
	if err != nil {
		logger.Error(ctx, "Failed to convert capture amount", err)
		return gatewayError(MsgCardGatewayIssue, err)
	}

	req, err := m.wrapper.BuildSale(ctx, captureAmount, source, order, SaleOptions{
		SubmitForSettlement: shouldCapture,
		DeviceData:          post.DeviceData,
		StoreInVault:        m.IsVaultEnabled() && post.SaveCard == 1,
		ThreeDSecure:        threeDSecure,
	})
	if err != nil {
		var payErr *Error
		if errors.As(err, &payErr) {
			return payErr
		}
		return gatewayError(MsgCardGatewayIssue, err)
	}

	logger.Info(ctx, "Submitting card sale",
		zap.String("order_id", order.IncrementID),
		zap.String("amount", captureAmount.StringFixed(2)),
		zap.Bool("capture", shouldCapture),
		zap.Bool("three_d_secure", threeDSecure),
		zap.Bool("uses_token", req.PaymentMethodToken != ""))

	result, err := m.wrapper.MakeSale(ctx, req)
	if err != nil {
		logger.Error(ctx, "Card sale failed", err, zap.String("order_id", order.IncrementID))
		return gatewayError(MsgCardGatewayIssue, err)
	}

	if err := checkSaleResult(result, m.Is3DEnabled()); err != nil {
		err = failedSale(p, m.Code(), result, captureAmount, err)
		logger.Info(ctx, "Card sale unsuccessful",
			zap.String("order_id", order.IncrementID),
			zap.Bool("held_for_review", HeldForReview(err)),
			zap.Error(err))
		return err
	}

	p.Method = m.Code()
	processSuccessResult(p, result.Transaction, captureAmount, m.Is3DEnabled())
	return nil
}

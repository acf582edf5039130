package payment

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment/braintree"
)

// SaleChannel identifies the integration to Braintree on every sale.
const SaleChannel = "MagentoVZero"

// SaleRequest is the charge payload sent to the gateway.
type SaleRequest = braintree.TransactionRequest

// PaymentSource carries exactly one of Token or Nonce.
type PaymentSource struct {
	Token string
	Nonce string
	CVV   string
}

func (s PaymentSource) valid() bool {
	return (s.Token == "") != (s.Nonce == "")
}

type SaleOptions struct {
	SubmitForSettlement bool
	DeviceData          string
	StoreInVault        bool
	ThreeDSecure        bool
}

// BuildSale assembles the sale payload for order. When the shopper is an
// existing vault customer and asked to save the card, the nonce is vaulted
// first and the sale runs against the new token.
func (w *Wrapper) BuildSale(ctx context.Context, amount decimal.Decimal, source PaymentSource, order *models.Order, opts SaleOptions) (*SaleRequest, error) {
	if order == nil || order.IncrementID == "" {
		return nil, validationError(MsgOrderInvalid)
	}
	if !source.valid() {
		return nil, validationError(MsgCardFailed)
	}

	createdMethod := false
	isCustomer := w.CheckIsCustomer(ctx)

	if opts.StoreInVault && isCustomer && source.Nonce != "" {
		customerID, err := w.BraintreeID(ctx)
		if err != nil {
			return nil, gatewayError(MsgCardGatewayIssue, err)
		}

		create := braintree.PaymentMethodRequest{
			CustomerID:         customerID,
			PaymentMethodNonce: source.Nonce,
			BillingAddress:     buildAddress(order.BillingAddress),
		}
		result, err := w.gateway.CreatePaymentMethod(ctx, create)
		if err != nil {
			return nil, gatewayError(MsgCardGatewayIssue, err)
		}
		if !result.Success {
			logger.Info(ctx, "Vaulting payment method failed",
				zap.String("order_id", order.IncrementID),
				zap.String("message", result.Message))
			return nil, validationError(result.Message + MsgVaultFailedSuffix)
		}
		if result.PaymentMethod != nil && result.PaymentMethod.Token != "" {
			source.Nonce = ""
			source.Token = result.PaymentMethod.Token
			createdMethod = true
		}
	}

	req := &SaleRequest{
		Type:               braintree.TransactionTypeSale,
		Amount:             amount,
		OrderID:            order.IncrementID,
		MerchantAccountID:  w.MerchantAccountID(),
		Channel:            SaleChannel,
		PaymentMethodNonce: source.Nonce,
		PaymentMethodToken: source.Token,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: opts.SubmitForSettlement,
			StoreInVault:        opts.StoreInVault,
		},
	}

	if source.CVV != "" {
		req.CreditCard = &braintree.CreditCardRequest{CVV: source.CVV}
	}

	includeID := !isCustomer && (w.checkout.loggedIn() || w.checkout.registering())
	customer, err := w.buildCustomer(ctx, order, includeID)
	if err != nil {
		return nil, gatewayError(MsgCardGatewayIssue, err)
	}
	req.Customer = customer

	if opts.DeviceData != "" {
		req.DeviceData = opts.DeviceData
	}
	if order.ShippingAddress != nil {
		req.Shipping = buildAddress(order.ShippingAddress)
	}
	if order.BillingAddress != nil {
		req.Billing = buildAddress(order.BillingAddress)
	}

	if opts.ThreeDSecure && !createdMethod {
		req.Options.ThreeDSecure = &braintree.ThreeDSecureOptions{Required: true}
	}

	return req, nil
}

func (w *Wrapper) buildCustomer(ctx context.Context, order *models.Order, includeID bool) (*braintree.CustomerRequest, error) {
	billing := order.BillingAddress
	if billing == nil {
		billing = &models.Address{}
	}

	customer := &braintree.CustomerRequest{
		FirstName: order.CustomerFirstname,
		LastName:  order.CustomerLastname,
		Email:     order.CustomerEmail,
		Phone:     billing.Telephone,
	}

	if includeID {
		id, err := w.BraintreeID(ctx)
		if err != nil {
			return nil, err
		}
		customer.ID = id
	}

	if customer.FirstName == "" {
		customer.FirstName = billing.FirstName
	}
	if customer.LastName == "" {
		customer.LastName = billing.LastName
	}
	if customer.Email == "" {
		customer.Email = billing.Email
	}

	return customer, nil
}

func buildAddress(address *models.Address) *braintree.AddressRequest {
	if address == nil {
		return nil
	}

	req := &braintree.AddressRequest{
		FirstName:         address.FirstName,
		LastName:          address.LastName,
		StreetAddress:     address.Street1(),
		ExtendedAddress:   address.Street2(),
		Locality:          address.City,
		PostalCode:        address.Postcode,
		CountryCodeAlpha2: address.CountryID,
		Company:           address.Company,
	}
	if address.Region != "" {
		req.Region = address.RegionCode
	}
	return req
}

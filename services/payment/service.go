package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"braintree-checkout-api/logger"
)

// Service hands out request-scoped wrappers for a store.
type Service struct {
	resolver   SettingsResolver
	store      Store
	newGateway GatewayFactory
}

func NewPaymentService(resolver SettingsResolver, store Store, newGateway GatewayFactory) *Service {
	return &Service{
		resolver:   resolver,
		store:      store,
		newGateway: newGateway,
	}
}

// Wrapper resolves the store's settings and builds a wrapper for one request.
func (s *Service) Wrapper(ctx context.Context, checkout *CheckoutContext) (*Wrapper, error) {
	settings, err := s.resolver.Resolve(ctx, checkout.StoreID)
	if err != nil {
		logger.Error(ctx, "Failed to resolve payment settings", err, zap.Int64("store_id", checkout.StoreID))
		return nil, fmt.Errorf("failed to resolve payment settings: %w", err)
	}

	gateway := s.newGateway(settings.Credentials)
	return NewWrapper(gateway, settings, s.store, checkout), nil
}

// CreditCard builds the card method for a request, failing when the store
// cannot take payments.
func (s *Service) CreditCard(ctx context.Context, checkout *CheckoutContext) (*CreditCard, error) {
	wrapper, err := s.Wrapper(ctx, checkout)
	if err != nil {
		return nil, err
	}
	method := NewCreditCard(wrapper)
	if !method.IsAvailable(ctx) {
		return nil, &Error{Kind: KindConfigInvalid, Message: MsgConfigInvalid}
	}
	return method, nil
}

// PayPal builds the PayPal method for a request, failing when the store
// cannot take payments.
func (s *Service) PayPal(ctx context.Context, checkout *CheckoutContext) (*PayPal, error) {
	wrapper, err := s.Wrapper(ctx, checkout)
	if err != nil {
		return nil, err
	}
	method := NewPayPal(wrapper)
	if !method.IsAvailable(ctx) {
		return nil, &Error{Kind: KindConfigInvalid, Message: MsgConfigInvalid}
	}
	return method, nil
}

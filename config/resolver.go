package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

// Store config paths.
const (
	PathEnvironment          = "payment/gene_braintree/environment"
	PathMerchantID           = "payment/gene_braintree/merchant_id"
	PathMerchantAccountID    = "payment/gene_braintree/merchant_account_id"
	PathPublicKey            = "payment/gene_braintree/public_key"
	PathPrivateKey           = "payment/gene_braintree/private_key"
	PathMultiCurrency        = "payment/gene_braintree/multi_currency_enable"
	PathMultiCurrencyMapping = "payment/gene_braintree/multi_currency_mapping"

	PathCreditCardActive        = "payment/gene_braintree_creditcard/active"
	PathCreditCardUseVault      = "payment/gene_braintree_creditcard/use_vault"
	PathCreditCardThreeDSecure  = "payment/gene_braintree_creditcard/threedsecure"
	PathCreditCardUseCCV        = "payment/gene_braintree_creditcard/useccv"
	PathCreditCardPaymentAction = "payment/gene_braintree_creditcard/payment_action"

	PathPayPalActive        = "payment/gene_braintree_paypal/active"
	PathPayPalExpressActive = "payment/gene_braintree_paypal/express_active"
	PathPayPalExpressPDP    = "payment/gene_braintree_paypal/express_pdp"
	PathPayPalExpressCart   = "payment/gene_braintree_paypal/express_cart"
	PathPayPalPaymentAction = "payment/gene_braintree_paypal/payment_action"
)

// DefaultScope is the store id holding values shared by every store.
const DefaultScope int64 = 0

// StoreConfigSource reads raw config rows for one scope.
type StoreConfigSource interface {
	StoreConfig(ctx context.Context, storeID int64) (map[string]string, error)
	StoreName(ctx context.Context, storeID int64) (string, error)
}

// Resolver builds payment settings per store: store scope first, then the
// default scope, then the process defaults.
type Resolver struct {
	source   StoreConfigSource
	defaults GatewayConfig
}

func NewResolver(source StoreConfigSource, defaults GatewayConfig) *Resolver {
	return &Resolver{source: source, defaults: defaults}
}

type scopedValues struct {
	store    map[string]string
	fallback map[string]string
}

func (v scopedValues) lookup(path string) (string, bool) {
	if value, ok := v.store[path]; ok {
		return value, true
	}
	value, ok := v.fallback[path]
	return value, ok
}

func (v scopedValues) str(path, fallback string) string {
	if value, ok := v.lookup(path); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (v scopedValues) flag(path string) bool {
	value, _ := v.lookup(path)
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (r *Resolver) Resolve(ctx context.Context, storeID int64) (*models.PaymentSettings, error) {
	defaults, err := r.source.StoreConfig(ctx, DefaultScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	scoped := defaults
	if storeID != DefaultScope {
		scoped, err = r.source.StoreConfig(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load config for store %d: %w", storeID, err)
		}
	}
	values := scopedValues{store: scoped, fallback: defaults}

	name, err := r.source.StoreName(ctx, storeID)
	if err != nil {
		logger.Warn(ctx, "Store name unavailable", zap.Int64("store_id", storeID), zap.Error(err))
		name = fmt.Sprintf("Store %d", storeID)
	}

	settings := &models.PaymentSettings{
		StoreID:   storeID,
		StoreName: name,
		Credentials: models.GatewayCredentials{
			Environment:       values.str(PathEnvironment, r.defaults.Environment),
			MerchantID:        values.str(PathMerchantID, r.defaults.MerchantID),
			PublicKey:         values.str(PathPublicKey, r.defaults.PublicKey),
			PrivateKey:        values.str(PathPrivateKey, r.defaults.PrivateKey),
			MerchantAccountID: values.str(PathMerchantAccountID, r.defaults.MerchantAccountID),
		},
		MultiCurrencyEnabled: values.flag(PathMultiCurrency),
		CurrencyMapping:      decodeCurrencyMapping(ctx, values.str(PathMultiCurrencyMapping, "")),
		CreditCard: models.CreditCardSettings{
			Active:        values.flag(PathCreditCardActive),
			UseVault:      values.flag(PathCreditCardUseVault),
			ThreeDSecure:  values.flag(PathCreditCardThreeDSecure),
			UseCCV:        values.flag(PathCreditCardUseCCV),
			PaymentAction: values.str(PathCreditCardPaymentAction, models.PaymentActionAuthorize),
		},
		PayPal: models.PayPalSettings{
			Active:        values.flag(PathPayPalActive),
			ExpressActive: values.flag(PathPayPalExpressActive),
			ExpressPDP:    values.flag(PathPayPalExpressPDP),
			ExpressCart:   values.flag(PathPayPalExpressCart),
			PaymentAction: values.str(PathPayPalPaymentAction, models.PaymentActionAuthorize),
		},
	}

	return settings, nil
}

// decodeCurrencyMapping parses the currency -> merchant account JSON object.
// Anything undecodable means no mapping.
func decodeCurrencyMapping(ctx context.Context, raw string) map[string]string {
	if raw == "" {
		return nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.Warn(ctx, "Ignoring invalid currency mapping", zap.Error(err))
		return nil
	}

	mapping := make(map[string]string, len(decoded))
	for currency, account := range decoded {
		if s, ok := account.(string); ok {
			mapping[strings.ToUpper(strings.TrimSpace(currency))] = strings.TrimSpace(s)
		}
	}
	return mapping
}

package express

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"braintree-checkout-api/models"
	"braintree-checkout-api/types"
)

// TelephonePlaceholder fills the phone PayPal never shares.
const TelephonePlaceholder = "0000000000"

// Totals is the summary shown next to the shipping methods.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	BaseGrandTotal decimal.Decimal `json:"base_grand_total"`
	Currency       string          `json:"currency"`
	ShippingMethod string          `json:"shipping_method,omitempty"`
}

func totalsOf(q *models.Quote) Totals {
	return Totals{
		Subtotal:       q.Subtotal,
		ShippingAmount: q.ShippingAmount,
		GrandTotal:     q.GrandTotal,
		BaseGrandTotal: q.BaseGrandTotal,
		Currency:       q.QuoteCurrencyCode,
		ShippingMethod: q.ShippingMethod,
	}
}

func rateByCode(rates []models.ShippingRate, code string) (models.ShippingRate, bool) {
	for _, rate := range rates {
		if rate.Code == code {
			return rate, true
		}
	}
	return models.ShippingRate{}, false
}

// shippingRates collects the rates for the quote's shipping address.
func (s *Service) shippingRates(ctx context.Context, q *models.Quote) ([]models.ShippingRate, error) {
	if q.IsVirtual() || q.ShippingAddress == nil || q.ShippingAddress.CountryID == "" {
		return nil, nil
	}
	rates, err := s.store.ShippingRates(ctx, q.ShippingAddress.CountryID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect shipping rates: %w", err)
	}
	return rates, nil
}

// collectTotals recalculates the quote totals in base currency and converts
// the grand total into the quote currency. A shipping method that is no
// longer offered is dropped.
func (s *Service) collectTotals(ctx context.Context, q *models.Quote, rates []models.ShippingRate) error {
	subtotal := decimal.Zero
	for _, item := range q.Items {
		subtotal = subtotal.Add(item.RowTotal())
	}

	shipping := decimal.Zero
	if q.IsVirtual() {
		q.ShippingMethod = ""
	} else if q.ShippingMethod != "" {
		if rate, ok := rateByCode(rates, q.ShippingMethod); ok {
			shipping = rate.Price
		} else {
			q.ShippingMethod = ""
		}
	}

	q.Subtotal = subtotal.Round(2)
	q.ShippingAmount = shipping.Round(2)
	q.BaseGrandTotal = subtotal.Add(shipping).Round(2)
	q.GrandTotal = q.BaseGrandTotal

	if q.QuoteCurrencyCode != "" && !strings.EqualFold(q.QuoteCurrencyCode, q.BaseCurrencyCode) {
		rate, err := s.store.GetCurrencyRate(ctx, q.BaseCurrencyCode, q.QuoteCurrencyCode)
		if err != nil {
			return fmt.Errorf("failed to convert quote totals: %w", err)
		}
		q.GrandTotal = q.BaseGrandTotal.Mul(rate).Round(2)
	}
	return nil
}

// addProduct adds qty of product to the quote, merging with an existing line.
func addProduct(q *models.Quote, product *models.Product, qty int) error {
	if !product.IsSalable {
		return fmt.Errorf("product %d is not salable", product.ID)
	}
	if qty <= 0 {
		return fmt.Errorf("invalid qty %d", qty)
	}

	for i := range q.Items {
		if q.Items[i].ProductID == product.ID {
			q.Items[i].Qty += qty
			return nil
		}
	}

	q.Items = append(q.Items, models.QuoteItem{
		QuoteID:   q.ID,
		ProductID: product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		Qty:       qty,
		Price:     product.Price,
		IsVirtual: product.IsVirtual,
	})
	return nil
}

// addressFromPayPal maps the PayPal shipping address onto a quote address.
func addressFromPayPal(details types.PayPalDetails) *models.Address {
	shipping := details.ShippingAddress

	firstName, lastName := shipping.RecipientName, ""
	if parts := strings.SplitN(shipping.RecipientName, " ", 2); len(parts) == 2 {
		firstName, lastName = parts[0], parts[1]
	}

	return &models.Address{
		FirstName: firstName,
		LastName:  lastName,
		Street:    []string{strings.TrimSpace(shipping.ExtendedAddress + " " + shipping.StreetAddress)},
		City:      shipping.Locality,
		Region:    shipping.Region,
		CountryID: strings.ToUpper(shipping.CountryCodeAlpha2),
		Postcode:  shipping.PostalCode,
		Telephone: TelephonePlaceholder,
		Email:     details.Email,
	}
}

// toOrder converts a quote into the order the payment is taken against.
func toOrder(q *models.Quote) *models.Order {
	order := &models.Order{
		IncrementID:       q.ReservedOrderID,
		StoreID:           q.StoreID,
		QuoteID:           q.ID,
		BaseCurrencyCode:  q.BaseCurrencyCode,
		OrderCurrencyCode: q.QuoteCurrencyCode,
		BaseGrandTotal:    q.BaseGrandTotal,
		GrandTotal:        q.GrandTotal,
		ShippingMethod:    q.ShippingMethod,
		ShippingAmount:    q.ShippingAmount,
		CustomerID:        q.CustomerID,
		CustomerEmail:     q.CustomerEmail,
		CustomerFirstname: q.CustomerFirstname,
		CustomerLastname:  q.CustomerLastname,
		CustomerIsGuest:   q.CustomerID == 0,
		BillingAddress:    copyAddress(q.BillingAddress),
		ShippingAddress:   copyAddress(q.ShippingAddress),
		State:             models.OrderStateNew,
		Status:            "pending",
	}

	if order.CustomerFirstname == "" && order.BillingAddress != nil {
		order.CustomerFirstname = order.BillingAddress.FirstName
		order.CustomerLastname = order.BillingAddress.LastName
	}

	for _, item := range q.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Qty:       item.Qty,
			Price:     item.Price,
			RowTotal:  item.RowTotal(),
			IsVirtual: item.IsVirtual,
		})
	}
	return order
}

func copyAddress(a *models.Address) *models.Address {
	if a == nil {
		return nil
	}
	c := *a
	c.Street = append([]string(nil), a.Street...)
	return &c
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteItem struct {
	ID        int64           `json:"id"`
	QuoteID   int64           `json:"quote_id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	IsVirtual bool            `json:"is_virtual"`
}

// RowTotal is price * qty.
func (i QuoteItem) RowTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// Quote is the cart aggregate the express checkout builds and converts.
type Quote struct {
	ID                int64           `json:"id"`
	StoreID           int64           `json:"store_id"`
	IsActive          bool            `json:"is_active"`
	ReservedOrderID   string          `json:"reserved_order_id"`
	CustomerID        int64           `json:"customer_id,omitempty"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerFirstname string          `json:"customer_firstname"`
	CustomerLastname  string          `json:"customer_lastname"`
	BaseCurrencyCode  string          `json:"base_currency_code"`
	QuoteCurrencyCode string          `json:"quote_currency_code"`
	Items             []QuoteItem     `json:"items"`
	BillingAddress    *Address        `json:"billing_address,omitempty"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	ShippingMethod    string          `json:"shipping_method,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingAmount    decimal.Decimal `json:"shipping_amount"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	BaseGrandTotal    decimal.Decimal `json:"base_grand_total"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	PaymentNonce      string          `json:"-"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsVirtual is true when the quote has items and none of them ship.
func (q *Quote) IsVirtual() bool {
	if len(q.Items) == 0 {
		return false
	}
	for _, item := range q.Items {
		if !item.IsVirtual {
			return false
		}
	}
	return true
}

type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsVirtual bool            `json:"is_virtual"`
	IsSalable bool            `json:"is_salable"`
}

type ShippingRate struct {
	Code        string          `json:"code"`
	Carrier     string          `json:"carrier"`
	CarrierName string          `json:"carrier_title"`
	Method      string          `json:"method"`
	MethodTitle string          `json:"method_title"`
	Price       decimal.Decimal `json:"price"`
}

type Region struct {
	ID        int64  `json:"id"`
	CountryID string `json:"country_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

type Customer struct {
	ID                  int64  `json:"id"`
	Email               string `json:"email"`
	FirstName           string `json:"firstname"`
	LastName            string `json:"lastname"`
	BraintreeCustomerID string `json:"braintree_customer_id,omitempty"`
}

const (
	NoticeSeverityCritical = 1
	NoticeSeverityMajor    = 2
	NoticeSeverityMinor    = 3
	NoticeSeverityNotice   = 4
)

// AdminNotice is an entry in the admin notification inbox.
type AdminNotice struct {
	ID          int64     `json:"id"`
	Severity    int       `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

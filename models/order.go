package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Address is an order or quote address as the shop stores it.
type Address struct {
	FirstName  string   `json:"firstname"`
	LastName   string   `json:"lastname"`
	Company    string   `json:"company,omitempty"`
	Street     []string `json:"street"`
	City       string   `json:"city"`
	Region     string   `json:"region,omitempty"`
	RegionCode string   `json:"region_code,omitempty"`
	RegionID   int64    `json:"region_id,omitempty"`
	Postcode   string   `json:"postcode"`
	CountryID  string   `json:"country_id"`
	Telephone  string   `json:"telephone,omitempty"`
	Email      string   `json:"email,omitempty"`
}

// Street1 returns the first street line.
func (a *Address) Street1() string {
	if a == nil || len(a.Street) == 0 {
		return ""
	}
	return a.Street[0]
}

// Street2 returns the second street line, if any.
func (a *Address) Street2() string {
	if a == nil || len(a.Street) < 2 {
		return ""
	}
	return a.Street[1]
}

// Name joins first and last name.
func (a *Address) Name() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	RowTotal  decimal.Decimal `json:"row_total"`
	IsVirtual bool            `json:"is_virtual"`
}

// Order is the placed order aggregate. The payment module only reads it.
type Order struct {
	ID                int64           `json:"id"`
	IncrementID       string          `json:"increment_id"`
	StoreID           int64           `json:"store_id"`
	QuoteID           int64           `json:"quote_id"`
	BaseCurrencyCode  string          `json:"base_currency_code"`
	OrderCurrencyCode string          `json:"order_currency_code"`
	BaseGrandTotal    decimal.Decimal `json:"base_grand_total"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	ShippingMethod    string          `json:"shipping_method,omitempty"`
	ShippingAmount    decimal.Decimal `json:"shipping_amount"`
	CustomerID        int64           `json:"customer_id,omitempty"`
	CustomerFirstname string          `json:"customer_firstname"`
	CustomerLastname  string          `json:"customer_lastname"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerIsGuest   bool            `json:"customer_is_guest"`
	BillingAddress    *Address        `json:"billing_address,omitempty"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	Items             []OrderItem     `json:"items,omitempty"`
	State             string          `json:"state"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

const (
	OrderStateNew           = "new"
	OrderStateProcessing    = "processing"
	OrderStatePaymentReview = "payment_review"
)

package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

// Actor is the authenticated caller of every workflow operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsBuyer() bool  { return a.Role == RoleBuyer }
func (a Actor) IsSeller() bool { return a.Role == RoleSeller }

type Product struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"seller_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	MinQuantity   int             `json:"min_quantity"`
	DeclaredStock int             `json:"declared_stock"`
	ReservedStock int             `json:"reserved_stock"`
	Active        bool            `json:"active"`
	Deleted       bool            `json:"deleted"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Inquiry struct {
	ID             string        `json:"id"`
	BuyerID        string        `json:"buyer_id"`
	SellerID       string        `json:"seller_id"`
	ProductID      string        `json:"product_id"`
	Quantity       int           `json:"quantity"`
	Message        string        `json:"message"`
	ShippingOption string        `json:"shipping_option,omitempty"`
	BuyerCountry   string        `json:"buyer_country,omitempty"`
	Status         InquiryStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	InquiryID      string          `json:"inquiry_id,omitempty"` // empty for direct orders
	BuyerID        string          `json:"buyer_id"`
	SellerID       string          `json:"seller_id"`
	ProductID      string          `json:"product_id"`
	FinalQuantity  int             `json:"final_quantity"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Currency       string          `json:"currency"`
	ShippingTerms  string          `json:"shipping_terms,omitempty"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         OrderStatus     `json:"status"`
	IdempotencyKey string          `json:"-"` // client retry key, unique per buyer
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Invoice struct {
	ID                string           `json:"id"`
	InvoiceNumber     string           `json:"invoice_number"`
	OrderID           string           `json:"order_id"`
	InquiryID         string           `json:"inquiry_id,omitempty"`
	SellerID          string           `json:"seller_id"`
	BuyerID           string           `json:"buyer_id"`
	ProductID         string           `json:"product_id"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	TotalPrice        decimal.Decimal  `json:"total_price"`
	ShippingMethod    string           `json:"shipping_method,omitempty"`
	ShippingCost      decimal.Decimal  `json:"shipping_cost"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	Currency          string           `json:"currency"`
	ConvertedAmount   *decimal.Decimal `json:"converted_amount,omitempty"`
	ConvertedCurrency string           `json:"converted_currency,omitempty"`
	Status            InvoiceStatus    `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

const DefaultCurrency = "INR"

func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale = 2

// checkMoney rejects negative amounts and amounts finer than MoneyScale,
// which storage would round column by column and so break the totals.
func checkMoney(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return validationf("%s must not be negative", field)
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return validationf("%s has more than %d decimal places", field, MoneyScale)
	}
	return nil
}

// OrderTotal is finalPrice*finalQuantity + shippingCost.
func OrderTotal(price decimal.Decimal, qty int, shipping decimal.Decimal) decimal.Decimal {
	return LineTotal(price, qty).Add(shipping)
}

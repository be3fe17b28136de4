package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOwner identifies a cart: exactly one of CustomerID or SessionID is set.
type CartOwner struct {
	CustomerID string
	SessionID  string
}

func CustomerOwner(customerID string) CartOwner { return CartOwner{CustomerID: customerID} }

func SessionOwner(sessionID string) CartOwner { return CartOwner{SessionID: sessionID} }

func (o CartOwner) Valid() bool {
	return (o.CustomerID == "") != (o.SessionID == "")
}

func (o CartOwner) Anonymous() bool {
	return o.SessionID != ""
}

type Cart struct {
	ID         string     `json:"id"`
	CustomerID *string    `json:"customerId,omitempty"`
	SessionID  *string    `json:"-"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Lines      []CartLine `json:"items"`
}

// CartLine is one (variant, quantity) pairing joined with live variant data.
type CartLine struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cartId"`
	VariantID string    `json:"variantId"`
	Quantity  int       `json:"quantity"`
	Variant   Variant   `json:"variant"`
	CreatedAt time.Time `json:"createdAt"`
}

// LineTotal is the live unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Variant.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Line returns the line for variantID, if any.
func (c Cart) Line(variantID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.VariantID == variantID {
			return l, true
		}
	}
	return CartLine{}, false
}

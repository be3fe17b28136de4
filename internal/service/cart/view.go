package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// View is the cart as returned to clients: lines joined with live variant
// data plus derived totals.
type View struct {
	ID         string          `json:"id"`
	CustomerID *string         `json:"customerId,omitempty"`
	Items      []ItemView      `json:"items"`
	ItemCount  int             `json:"itemCount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type ItemView struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Product   ProductView     `json:"product"`
	Variant   VariantView     `json:"variant"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type ProductView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Available bool   `json:"available"`
}

type VariantView struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	SKU               string           `json:"sku"`
	Price             decimal.Decimal  `json:"price"`
	CompareAtPrice    *decimal.Decimal `json:"compareAtPrice,omitempty"`
	InventoryQuantity int              `json:"inventoryQuantity"`
	ImageURL          string           `json:"imageUrl,omitempty"`
}

func NewView(c domain.Cart) View {
	v := View{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Items:      make([]ItemView, 0, len(c.Lines)),
		ItemCount:  c.ItemCount(),
		Subtotal:   c.Subtotal().Round(2),
		ExpiresAt:  c.ExpiresAt,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, l := range c.Lines {
		v.Items = append(v.Items, ItemView{
			ID:        l.ID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			Product: ProductView{
				ID:        l.Variant.ProductID,
				Title:     l.Variant.ProductTitle,
				Slug:      l.Variant.ProductSlug,
				Available: l.Variant.Live(),
			},
			Variant: VariantView{
				ID:                l.Variant.ID,
				Title:             l.Variant.Title,
				SKU:               l.Variant.SKU,
				Price:             l.Variant.Price,
				CompareAtPrice:    l.Variant.CompareAtPrice,
				InventoryQuantity: l.Variant.InventoryQuantity,
				ImageURL:          l.Variant.ImageURL,
			},
			LineTotal: l.LineTotal(),
		})
	}
	return v
}

package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// Notifier dispatches order confirmations. Delivery is best effort.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
}

// OrderConfirmation is the payload sent to the mail pipeline.
type OrderConfirmation struct {
	EventID      string             `json:"event_id"`
	OrderID      string             `json:"order_id"`
	OrderNumber  string             `json:"order_number"`
	Email        string             `json:"email"`
	CustomerName string             `json:"customer_name"`
	Currency     string             `json:"currency"`
	Subtotal     string             `json:"subtotal"`
	Discount     string             `json:"discount"`
	Shipping     string             `json:"shipping"`
	Tax          string             `json:"tax"`
	Total        string             `json:"total"`
	Items        []ConfirmationItem `json:"items"`
	Address      domain.Address     `json:"shipping_address"`
	PlacedAt     time.Time          `json:"placed_at"`
}

type ConfirmationItem struct {
	Title    string `json:"title"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// NewOrderConfirmation snapshots an order into a confirmation payload.
func NewOrderConfirmation(eventID string, o domain.Order, currency string) OrderConfirmation {
	items := make([]ConfirmationItem, 0, len(o.Items))
	for _, it := range o.Items {
		title := it.ProductTitle
		if it.VariantTitle != "" {
			title += " - " + it.VariantTitle
		}
		items = append(items, ConfirmationItem{
			Title:    title,
			SKU:      it.SKU,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}
	return OrderConfirmation{
		EventID:      eventID,
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		Email:        o.Email,
		CustomerName: o.ShippingAddress.FirstName + " " + o.ShippingAddress.LastName,
		Currency:     currency,
		Subtotal:     o.Subtotal.StringFixed(2),
		Discount:     o.DiscountAmount.StringFixed(2),
		Shipping:     o.ShippingCost.StringFixed(2),
		Tax:          o.Tax.StringFixed(2),
		Total:        o.Total.StringFixed(2),
		Items:        items,
		Address:      o.ShippingAddress,
		PlacedAt:     o.CreatedAt,
	}
}

// LogNotifier only logs confirmations; used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(logger)}
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, msg OrderConfirmation) error {
	n.logger.Info("order confirmation",
		zap.String("order_number", msg.OrderNumber),
		zap.String("email", msg.Email),
		zap.String("total", msg.Total))
	return nil
}

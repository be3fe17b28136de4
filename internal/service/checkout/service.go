// Package checkout prices carts, validates discount codes, charges the
// payment processor and turns a cart into a paid order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	orderrepo "storefront/internal/repository/order"
)

type cartReader interface {
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
}

type discountLookup interface {
	GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error)
}

type settingsReader interface {
	Get(ctx context.Context) (domain.StoreSettings, error)
}

type orderStore interface {
	Place(ctx context.Context, in orderrepo.PlaceInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
	AddFulfillment(ctx context.Context, id string, in orderrepo.FulfillmentInput) (*domain.Order, error)
}

// Deps are the collaborators of the checkout service.
type Deps struct {
	Carts     cartReader
	Discounts discountLookup
	Settings  settingsReader
	Orders    orderStore
	Payments  payment.Processor
	Notifier  notify.Notifier
	Numbers   *NumberGenerator
	Logger    *zap.Logger
	// NotifyTimeout bounds the background confirmation dispatch.
	NotifyTimeout time.Duration
}

type Service struct {
	carts         cartReader
	discounts     discountLookup
	settings      settingsReader
	orders        orderStore
	payments      payment.Processor
	notifier      notify.Notifier
	numbers       *NumberGenerator
	logger        *zap.Logger
	notifyTimeout time.Duration
	now           func() time.Time
	inflight      sync.WaitGroup
}

func New(d Deps) *Service {
	s := &Service{
		carts:         d.Carts,
		discounts:     d.Discounts,
		settings:      d.Settings,
		orders:        d.Orders,
		payments:      d.Payments,
		notifier:      d.Notifier,
		numbers:       d.Numbers,
		logger:        logging.OrNop(d.Logger),
		notifyTimeout: d.NotifyTimeout,
		now:           time.Now,
	}
	if s.numbers == nil {
		s.numbers = NewNumberGenerator("")
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 10 * time.Second
	}
	return s
}

// Input is what the shopper submits at checkout. Card data is only passed
// to the processor and never stored.
type Input struct {
	Email           string         `json:"email"`
	ShippingAddress domain.Address `json:"shippingAddress"`
	SaveAddress     bool           `json:"saveAddress"`
	DiscountCode    string         `json:"discountCode,omitempty"`
	Note            string         `json:"note,omitempty"`
	Card            payment.Card   `json:"card"`
}

// Quote is a priced cart: totals plus the applied discount, if any.
type Quote struct {
	CartID   string           `json:"cartId"`
	Totals   pricing.Totals   `json:"totals"`
	Discount *AppliedDiscount `json:"discount,omitempty"`
	Currency string           `json:"currency"`
}

// Quote prices a cart with an optional discount code without side effects.
func (s *Service) Quote(ctx context.Context, cartID, code string) (*Quote, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, c, code, settings)
}

// Checkout converts the cart into a PAID order. Payment is taken before the
// order is stored; if storing fails the charge is voided. The confirmation
// is sent in the background and never affects the result.
func (s *Service) Checkout(ctx context.Context, cartID string, in Input, customerID *string) (*domain.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store settings: %w", err)
	}
	q, err := s.price(ctx, c, in.DiscountCode, settings)
	if err != nil {
		return nil, err
	}

	number := s.numbers.Next()
	charge, err := s.payments.Charge(ctx, payment.Charge{
		Amount:      q.Totals.Total,
		Currency:    settings.Currency,
		Card:        in.Card,
		Description: "Order " + number,
	})
	if err != nil {
		if domain.KindOf(err) == "" {
			s.logger.Error("checkout: payment error", zap.String("cart_id", cartID), zap.Error(err))
			return nil, domain.Invalid(domain.ErrPaymentProcessingFailed, err.Error())
		}
		s.logger.Info("checkout: payment rejected", zap.String("cart_id", cartID), zap.Error(err))
		return nil, err
	}

	placeIn := orderrepo.PlaceInput{
		CartID:          c.ID,
		OrderNumber:     number,
		CustomerID:      customerID,
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Subtotal:        q.Totals.Subtotal,
		DiscountAmount:  q.Totals.Discount,
		ShippingCost:    q.Totals.Shipping,
		Tax:             q.Totals.Tax,
		Total:           q.Totals.Total,
		ShippingAddress: in.ShippingAddress,
		SaveAddress:     in.SaveAddress && customerID != nil,
		Note:            strings.TrimSpace(in.Note),
		Lines:           placedLines(c),
		Payment: domain.Payment{
			Amount:        q.Totals.Total,
			Provider:      charge.Provider,
			TransactionID: charge.TransactionID,
			CardBrand:     string(charge.Summary.Brand),
			CardLast4:     charge.Summary.Last4,
		},
	}
	if q.Discount != nil {
		id := q.Discount.Code.ID
		placeIn.DiscountCodeID = &id
	}

	// The card is charged: a client disconnect must not abandon the placement
	// and leave a captured payment without an order.
	order, err := s.orders.Place(context.WithoutCancel(ctx), placeIn)
	if err != nil {
		s.void(ctx, charge.TransactionID, err)
		return nil, err
	}

	s.logger.Info("checkout: order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)))
	s.sendConfirmation(ctx, *order, settings.Currency)
	return order, nil
}

// Wait blocks until background confirmations have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) price(ctx context.Context, c *domain.Cart, code string, settings domain.StoreSettings) (*Quote, error) {
	if c.Empty() {
		return nil, domain.ErrEmptyCart
	}
	// Advisory only: the conditional decrement at commit is authoritative.
	for _, l := range c.Lines {
		if !l.Variant.Live() {
			return nil, domain.Invalid(domain.ErrUnavailableVariant,
				fmt.Sprintf("variant %s is no longer available", l.VariantID))
		}
		if l.Quantity > l.Variant.InventoryQuantity {
			return nil, domain.InsufficientInventory(l.VariantID, l.Variant.InventoryQuantity)
		}
	}

	subtotal := c.Subtotal()
	q := &Quote{CartID: c.ID, Currency: settings.Currency}
	discount, freeShipping := decimal.Zero, false
	if strings.TrimSpace(code) != "" {
		applied, err := s.ApplyDiscount(ctx, code, subtotal)
		if err != nil {
			return nil, err
		}
		q.Discount = applied
		discount, freeShipping = applied.Amount, applied.FreeShipping
	}
	q.Totals = pricing.Compute(subtotal, discount, freeShipping, settings)
	return q, nil
}

func (s *Service) loadCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	c, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}
	return c, nil
}

// void releases a charge whose order could not be stored. It runs even if
// the request context is already cancelled.
func (s *Service) void(ctx context.Context, transactionID string, cause error) {
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.payments.Void(vctx, transactionID); err != nil {
		s.logger.Error("checkout: void payment failed",
			zap.String("transaction_id", transactionID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.logger.Warn("checkout: payment voided after failed order",
		zap.String("transaction_id", transactionID),
		zap.Error(cause))
}

func (s *Service) sendConfirmation(ctx context.Context, order domain.Order, currency string) {
	msg := notify.NewOrderConfirmation(uuid.NewString(), order, currency)
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.notifier.SendOrderConfirmation(nctx, msg); err != nil {
			s.logger.Warn("checkout: order confirmation failed",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		}
	}()
}

func placedLines(c *domain.Cart) []orderrepo.PlacedLine {
	out := make([]orderrepo.PlacedLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, orderrepo.PlacedLine{
			VariantID:    l.VariantID,
			Quantity:     l.Quantity,
			ProductTitle: l.Variant.ProductTitle,
			VariantTitle: l.Variant.Title,
			SKU:          l.Variant.SKU,
			Price:        l.Variant.Price,
			ImageURL:     l.Variant.ImageURL,
		})
	}
	return out
}

func validateInput(in Input) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return domain.Invalid(domain.ErrInvalidCheckout, "a valid email is required")
	}
	a := in.ShippingAddress
	required := []struct{ field, value string }{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"line1", a.Line1},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.Invalid(domain.ErrInvalidCheckout, "shippingAddress."+r.field+" is required")
		}
	}
	number, err := payment.Normalize(in.Card.Number)
	if err != nil {
		return err
	}
	if number == "" {
		return domain.Invalid(domain.ErrInvalidCheckout, "card number is required")
	}
	return nil
}

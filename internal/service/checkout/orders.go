package checkout

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
)

// GetOrder returns an order owned by customerID.
func (s *Service) GetOrder(ctx context.Context, id, customerID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if o.CustomerID == nil || *o.CustomerID != customerID {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// LookupPublic finds an order by its number for anyone who also knows the
// order's email.
func (s *Service) LookupPublic(ctx context.Context, number, email string) (*domain.Order, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" || strings.TrimSpace(email) == "" {
		return nil, domain.ErrOrderNotFound
	}
	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if !strings.EqualFold(o.Email, strings.TrimSpace(email)) {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByCustomer(ctx, customerID, limit, offset)
}

// AdminGetOrder returns any order by id.
func (s *Service) AdminGetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, orderNotFound(err)
	}
	return o, nil
}

// UpdateStatus moves an order along the status machine. Inventory and
// pricing are never touched.
func (s *Service) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, domain.Invalid(domain.ErrInvalidStatusTransition,
			"cannot move order from "+string(o.Status)+" to "+string(to))
	}
	updated, err := s.orders.UpdateStatus(ctx, id, o.Status, to)
	if err != nil {
		return nil, orderNotFound(err)
	}
	s.logger.Info("order status updated",
		zap.String("order_number", updated.OrderNumber),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)))
	return updated, nil
}

// FulfillmentInput describes a shipment.
type FulfillmentInput struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
}

// CreateFulfillment records a shipment and marks the order SHIPPED.
func (s *Service) CreateFulfillment(ctx context.Context, id string, in FulfillmentInput) (*domain.Order, error) {
	o, err := s.orders.AddFulfillment(ctx, id, orderrepo.FulfillmentInput{
		Carrier:        strings.TrimSpace(in.Carrier),
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		TrackingURL:    strings.TrimSpace(in.TrackingURL),
	})
	if err != nil {
		return nil, orderNotFound(err)
	}
	return o, nil
}

func orderNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrOrderNotFound
	}
	return err
}

package payment

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	// ProviderMock is recorded on payments made through MockProcessor.
	ProviderMock = "mock"

	approveDigit = '1'
	declineDigit = '2'
)

// Charge is a single payment attempt.
type Charge struct {
	Amount      decimal.Decimal
	Currency    string
	Card        Card
	Description string
}

// Result is a successful charge.
type Result struct {
	TransactionID string
	Provider      string
	Summary       Summary
}

// Processor charges cards and voids charges whose order could not be stored.
type Processor interface {
	Charge(ctx context.Context, c Charge) (*Result, error)
	Void(ctx context.Context, transactionID string) error
}

// MockProcessor decides from the card number's last digit: '1' approves,
// '2' declines, anything else approves with ApprovalRate probability and
// otherwise fails generically.
type MockProcessor struct {
	latency      time.Duration
	approvalRate float64
	roll         func() float64
	logger       *zap.Logger
}

func NewMock(latency time.Duration, approvalRate float64, logger *zap.Logger) *MockProcessor {
	if approvalRate < 0 || approvalRate > 1 {
		approvalRate = 0.95
	}
	return &MockProcessor{
		latency:      latency,
		approvalRate: approvalRate,
		roll:         rand.Float64,
		logger:       logging.OrNop(logger),
	}
}

func (p *MockProcessor) Charge(ctx context.Context, c Charge) (*Result, error) {
	number, err := Normalize(c.Card.Number)
	if err != nil {
		return nil, err
	}
	if len(number) < 12 || len(number) > 19 {
		return nil, domain.Invalid(domain.ErrInvalidCheckout, "card number must have 12 to 19 digits")
	}
	if c.Amount.IsNegative() {
		return nil, domain.Invalid(domain.ErrInvalidCheckout, "charge amount must not be negative")
	}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	summary := Summarize(number)
	switch number[len(number)-1] {
	case approveDigit:
	case declineDigit:
		p.logger.Info("mock payment declined", zap.String("card_brand", string(summary.Brand)), zap.String("card_last4", summary.Last4))
		return nil, domain.ErrCardDeclined
	default:
		if p.roll() >= p.approvalRate {
			p.logger.Warn("mock payment failed", zap.String("card_last4", summary.Last4))
			return nil, domain.ErrPaymentProcessingFailed
		}
	}

	res := &Result{
		TransactionID: "mock_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Provider:      ProviderMock,
		Summary:       summary,
	}
	p.logger.Info("mock payment approved",
		zap.String("transaction_id", res.TransactionID),
		zap.String("amount", c.Amount.StringFixed(2)),
		zap.String("card_brand", string(summary.Brand)),
		zap.String("card_last4", summary.Last4))
	return res, nil
}

func (p *MockProcessor) Void(_ context.Context, transactionID string) error {
	p.logger.Info("mock payment voided", zap.String("transaction_id", transactionID))
	return nil
}

func (p *MockProcessor) wait(ctx context.Context) error {
	if p.latency <= 0 {
		return nil
	}
	t := time.NewTimer(p.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

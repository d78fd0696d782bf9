// Package payment simulates a card processor. Declines are results, not
// errors, so the booking workflow can surface them as a normal outcome.
package payment

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Card struct {
	Number      string
	Holder      string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

type ChargeRequest struct {
	AmountCents int64
	Card        Card
}

type ChargeResult struct {
	Success       bool
	TransactionID string
	ErrorMessage  string
}

type RefundResult struct {
	Success      bool
	ErrorMessage string
}

type Gateway struct {
	chargeSuccessRate float64
	refundSuccessRate float64
	latency           time.Duration
	rand              io.Reader
	now               func() time.Time
}

type Option func(*Gateway)

func WithRandSource(r io.Reader) Option {
	return func(g *Gateway) { g.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithLatency(d time.Duration) Option {
	return func(g *Gateway) { g.latency = d }
}

func NewGateway(chargeSuccessRate, refundSuccessRate float64, opts ...Option) *Gateway {
	g := &Gateway{
		chargeSuccessRate: chargeSuccessRate,
		refundSuccessRate: refundSuccessRate,
		latency:           150 * time.Millisecond,
		rand:              crand.Reader,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Charge validates the card, simulates gateway latency, then authorizes with
// the configured success probability.
func (g *Gateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return &ChargeResult{Success: false, ErrorMessage: "charge amount must be positive"}, nil
	}
	if msg := validateCard(req.Card, g.now()); msg != "" {
		return &ChargeResult{Success: false, ErrorMessage: msg}, nil
	}
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}

	roll, err := g.roll()
	if err != nil {
		return nil, err
	}
	if roll >= g.chargeSuccessRate {
		return &ChargeResult{Success: false, ErrorMessage: "card declined by issuing bank"}, nil
	}
	return &ChargeResult{Success: true, TransactionID: g.transactionID()}, nil
}

// Refund is the compensating operation for a charge that could not be
// followed by a durable booking write.
func (g *Gateway) Refund(ctx context.Context, transactionID string, amountCents int64) (*RefundResult, error) {
	if transactionID == "" || amountCents <= 0 {
		return &RefundResult{Success: false, ErrorMessage: "invalid refund request"}, nil
	}
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}

	roll, err := g.roll()
	if err != nil {
		return nil, err
	}
	if roll >= g.refundSuccessRate {
		return &RefundResult{Success: false, ErrorMessage: "refund rejected by processor"}, nil
	}
	return &RefundResult{Success: true}, nil
}

func (g *Gateway) simulateLatency(ctx context.Context) error {
	if g.latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.latency):
		return nil
	}
}

// roll returns a uniform float in [0, 1).
func (g *Gateway) roll() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		return 0, fmt.Errorf("read random source: %w", err)
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / float64(1<<53), nil
}

func (g *Gateway) transactionID() string {
	return fmt.Sprintf("TXN-%d-%s", g.now().Unix(), strings.ToUpper(uuid.NewString()[:8]))
}

func validateCard(card Card, now time.Time) string {
	digits := strings.ReplaceAll(strings.ReplaceAll(card.Number, " ", ""), "-", "")
	if len(digits) < 13 || len(digits) > 19 || !allDigits(digits) {
		return "invalid card number"
	}
	if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
		return "invalid expiry month"
	}
	endOfMonth := time.Date(card.ExpiryYear, time.Month(card.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !endOfMonth.After(now) {
		return "card expired"
	}
	if len(card.CVV) < 3 || len(card.CVV) > 4 || !allDigits(card.CVV) {
		return "invalid cvv"
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package payment

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// zeroReader rolls 0.0 on every draw, so charges always succeed against a
// positive success rate.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// fullReader rolls just under 1.0, so charges always fail against any rate
// below 1.0.
type fullReader struct{}

func (fullReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xFF
	}
	return len(p), nil
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func validCard() Card {
	return Card{
		Number:      "4111 1111 1111 1111",
		Holder:      "ADA LOVELACE",
		ExpiryMonth: 12,
		ExpiryYear:  2028,
		CVV:         "123",
	}
}

func newTestGateway(rnd io.Reader) *Gateway {
	return NewGateway(0.90, 0.95,
		WithRandSource(rnd),
		WithClock(fixedClock),
		WithLatency(0),
	)
}

func TestCharge_Approved(t *testing.T) {
	g := newTestGateway(zeroReader{})

	result, err := g.Charge(context.Background(), ChargeRequest{AmountCents: 29999, Card: validCard()})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Regexp(t, `^TXN-\d+-[A-F0-9]{8}$`, result.TransactionID)
	assert.Empty(t, result.ErrorMessage)
}

func TestCharge_DeclinedByIssuer(t *testing.T) {
	g := newTestGateway(fullReader{})

	result, err := g.Charge(context.Background(), ChargeRequest{AmountCents: 29999, Card: validCard()})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "card declined by issuing bank", result.ErrorMessage)
	assert.Empty(t, result.TransactionID)
}

func TestCharge_CardValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Card)
		message string
	}{
		{
			name:    "number too short",
			mutate:  func(c *Card) { c.Number = "4111" },
			message: "invalid card number",
		},
		{
			name:    "number with letters",
			mutate:  func(c *Card) { c.Number = "4111abcd11111111" },
			message: "invalid card number",
		},
		{
			name:    "month out of range",
			mutate:  func(c *Card) { c.ExpiryMonth = 13 },
			message: "invalid expiry month",
		},
		{
			name:    "expired last month",
			mutate:  func(c *Card) { c.ExpiryMonth = 2; c.ExpiryYear = 2026 },
			message: "card expired",
		},
		{
			name:    "cvv too short",
			mutate:  func(c *Card) { c.CVV = "12" },
			message: "invalid cvv",
		},
	}

	g := newTestGateway(zeroReader{})
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			card := validCard()
			tc.mutate(&card)

			result, err := g.Charge(context.Background(), ChargeRequest{AmountCents: 29999, Card: card})
			assert.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tc.message, result.ErrorMessage)
		})
	}
}

func TestCharge_ExpiryValidThroughEndOfMonth(t *testing.T) {
	g := newTestGateway(zeroReader{})

	card := validCard()
	card.ExpiryMonth = 3
	card.ExpiryYear = 2026

	result, err := g.Charge(context.Background(), ChargeRequest{AmountCents: 29999, Card: card})
	assert.NoError(t, err)
	assert.True(t, result.Success)
}

func TestCharge_NonPositiveAmount(t *testing.T) {
	g := newTestGateway(zeroReader{})

	result, err := g.Charge(context.Background(), ChargeRequest{AmountCents: 0, Card: validCard()})
	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "charge amount must be positive", result.ErrorMessage)
}

func TestCharge_ContextCancelledDuringLatency(t *testing.T) {
	g := NewGateway(0.90, 0.95,
		WithRandSource(zeroReader{}),
		WithClock(fixedClock),
		WithLatency(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, ChargeRequest{AmountCents: 29999, Card: validCard()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefund_Approved(t *testing.T) {
	g := newTestGateway(zeroReader{})

	result, err := g.Refund(context.Background(), "TXN-1-ABCDEF01", 29999)
	assert.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRefund_Rejected(t *testing.T) {
	g := newTestGateway(fullReader{})

	result, err := g.Refund(context.Background(), "TXN-1-ABCDEF01", 29999)
	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "refund rejected by processor", result.ErrorMessage)
}

func TestRefund_InvalidRequest(t *testing.T) {
	g := newTestGateway(zeroReader{})

	result, err := g.Refund(context.Background(), "", 29999)
	assert.NoError(t, err)
	assert.False(t, result.Success)

	result, err = g.Refund(context.Background(), "TXN-1-ABCDEF01", -5)
	assert.NoError(t, err)
	assert.False(t, result.Success)
}

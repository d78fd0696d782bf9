// Package codes produces the short public identifiers used across bookings:
// confirmation numbers, baggage tracking numbers and boarding QR payloads.
package codes

import (
	crand "crypto/rand"
	"fmt"
	"io"
)

const (
	confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	letterAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitAlphabet        = "0123456789"

	confirmationLength = 6
	qrSuffixLength     = 10
)

// Generator draws from an injected randomness source. Production wiring
// passes nil and gets crypto/rand; tests pass a seeded reader.
type Generator struct {
	rand io.Reader
}

func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = crand.Reader
	}
	return &Generator{rand: r}
}

// ConfirmationNumber returns 6 characters from [A-Z0-9]. Uniqueness is
// enforced by the storage layer; callers retry on collision.
func (g *Generator) ConfirmationNumber() (string, error) {
	return g.draw(confirmationAlphabet, confirmationLength)
}

// TrackingNumber returns 3 letters followed by 6 digits.
func (g *Generator) TrackingNumber() (string, error) {
	letters, err := g.draw(letterAlphabet, 3)
	if err != nil {
		return "", err
	}
	digits, err := g.draw(digitAlphabet, 6)
	if err != nil {
		return "", err
	}
	return letters + digits, nil
}

// BoardingQRPayload builds the opaque display token embedded in a boarding
// pass QR code. It is not cryptographically verifiable.
func (g *Generator) BoardingQRPayload(confirmationNumber string) (string, error) {
	suffix, err := g.draw(confirmationAlphabet, qrSuffixLength)
	if err != nil {
		return "", err
	}
	return confirmationNumber + "-" + suffix, nil
}

// draw picks n symbols uniformly via rejection sampling so the distribution
// is unbiased for alphabets that do not divide 256.
func (g *Generator) draw(alphabet string, n int) (string, error) {
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, 1)
	for len(out) < n {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		if limit != 0 && buf[0] >= limit {
			continue
		}
		out = append(out, alphabet[int(buf[0])%len(alphabet)])
	}
	return string(out), nil
}

// Package fare prices a booking. All amounts are integer cents so currency
// totals never touch binary floating point.
package fare

import (
	"fmt"

	"github.com/avelair/skybooking/internal/domain"
)

// BaseFareCents is the per-passenger economy fare: $299.99.
const BaseFareCents int64 = 29999

// multiplierPercent returns the class multiplier scaled by 100
// (Economy 1.0, PremiumEconomy 1.5, Business 2.5, First 4.0).
func multiplierPercent(c domain.SeatClass) (int64, error) {
	switch c {
	case domain.SeatClassEconomy:
		return 100, nil
	case domain.SeatClassPremiumEconomy:
		return 150, nil
	case domain.SeatClassBusiness:
		return 250, nil
	case domain.SeatClassFirst:
		return 400, nil
	}
	return 0, fmt.Errorf("unknown seat class %q: %w", c, domain.ErrValidation)
}

// PassengerFare prices a single passenger, rounding half-up to the cent.
func PassengerFare(class domain.SeatClass) (int64, error) {
	pct, err := multiplierPercent(class)
	if err != nil {
		return 0, err
	}
	return (BaseFareCents*pct + 50) / 100, nil
}

// Total sums per-passenger fares. An empty passenger list is rejected rather
// than priced at zero.
func Total(passengers []domain.Passenger) (int64, error) {
	if len(passengers) == 0 {
		return 0, fmt.Errorf("at least one passenger required: %w", domain.ErrValidation)
	}
	var total int64
	for _, p := range passengers {
		f, err := PassengerFare(p.SeatClass)
		if err != nil {
			return 0, err
		}
		total += f
	}
	return total, nil
}

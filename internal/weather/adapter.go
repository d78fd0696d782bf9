// Package weather is a stand-in for an external weather provider. Booking
// logic never depends on it; it only shares the request context.
package weather

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/avelair/skybooking/internal/domain"
)

type Info struct {
	AirportCode  string    `json:"airport_code"`
	Condition    string    `json:"condition"`
	TemperatureC int       `json:"temperature_c"`
	WindKph      int       `json:"wind_kph"`
	ObservedAt   time.Time `json:"observed_at"`
}

var conditions = []string{"CLEAR", "PARTLY_CLOUDY", "OVERCAST", "RAIN", "THUNDERSTORM", "SNOW", "FOG"}

type Adapter struct {
	rand io.Reader
	now  func() time.Time
}

func NewAdapter(rnd io.Reader, now func() time.Time) *Adapter {
	if rnd == nil {
		rnd = crand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{rand: rnd, now: now}
}

func (a *Adapter) Current(ctx context.Context, airportCode string) (*Info, error) {
	if len(airportCode) != 3 {
		return nil, fmt.Errorf("airport code must be 3 letters: %w", domain.ErrValidation)
	}
	var buf [3]byte
	if _, err := io.ReadFull(a.rand, buf[:]); err != nil {
		return nil, fmt.Errorf("weather source: %w", domain.ErrUpstreamUnavailable)
	}
	return &Info{
		AirportCode:  airportCode,
		Condition:    conditions[int(buf[0])%len(conditions)],
		TemperatureC: int(buf[1])%46 - 10,
		WindKph:      int(buf[2]) % 60,
		ObservedAt:   a.now(),
	}, nil
}

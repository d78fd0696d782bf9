package flights

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/repository"
	"github.com/avelair/skybooking/internal/weather"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.FlightInstance, error)
	GetByNumberAndDate(ctx context.Context, number string, date time.Time) (*domain.FlightInstance, error)
	Weather(ctx context.Context, airportCode string) (*weather.Info, error)
	RandomizeStatuses(ctx context.Context) (int, error)
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.FlightInstance, error)
	SetFlights(ctx context.Context, flights []domain.FlightInstance) error
}

type WeatherProvider interface {
	Current(ctx context.Context, airportCode string) (*weather.Info, error)
}

type FlightService struct {
	repo    repository.FlightRepository
	cache   Cache
	weather WeatherProvider
	rand    io.Reader
	now     func() time.Time
}

type FlightServiceOption func(*FlightService)

func WithRandSource(r io.Reader) FlightServiceOption {
	return func(s *FlightService) { s.rand = r }
}

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) { s.now = now }
}

func NewFlightService(repo repository.FlightRepository, cache Cache, provider WeatherProvider, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{
		repo:    repo,
		cache:   cache,
		weather: provider,
		rand:    crand.Reader,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FlightService) List(ctx context.Context) ([]domain.FlightInstance, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			log.Printf("cache flights: %v", err)
		}
	}
	return flights, nil
}

func (s *FlightService) GetByNumberAndDate(ctx context.Context, number string, date time.Time) (*domain.FlightInstance, error) {
	return s.repo.GetByNumberAndDate(ctx, number, date)
}

func (s *FlightService) Weather(ctx context.Context, airportCode string) (*weather.Info, error) {
	return s.weather.Current(ctx, airportCode)
}

var gates = []string{"A1", "A7", "A12", "B3", "B9", "C4", "C22", "D5"}

// RandomizeStatuses is the background status mutator: it walks every
// non-terminal flight toward a time-appropriate status and occasionally moves
// the gate or shifts the estimate. Bookings tolerate these changes by reading
// one flight snapshot per request.
func (s *FlightService) RandomizeStatuses(ctx context.Context) (int, error) {
	flights, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	mutated := 0
	buf := make([]byte, 3)
	for _, f := range flights {
		// Terminal flights never move, whatever the repository returned.
		if f.Status.Terminal() {
			continue
		}
		if _, err := io.ReadFull(s.rand, buf); err != nil {
			return mutated, fmt.Errorf("status source: %w", err)
		}
		// Mutate roughly one flight in four per sweep.
		if buf[0]%4 != 0 {
			continue
		}

		next := nextStatus(&f, now, buf[1])
		gate := f.Gate
		estDep := f.EstimatedDeparture
		estArr := f.EstimatedArrival
		if next == domain.FlightStatusDelayed {
			delay := time.Duration(15+int(buf[2])%46) * time.Minute
			estDep = f.ScheduledDeparture.Add(delay)
			estArr = f.ScheduledArrival.Add(delay)
		}
		if next == domain.FlightStatusBoarding && buf[2]%3 == 0 {
			gate = gates[int(buf[2])%len(gates)]
		}

		if err := s.repo.UpdateStatus(ctx, f.ID, next, gate, estDep, estArr); err != nil {
			log.Printf("update flight %s status: %v", f.Number, err)
			continue
		}
		mutated++
	}
	return mutated, nil
}

func nextStatus(f *domain.FlightInstance, now time.Time, roll byte) domain.FlightStatus {
	switch {
	case now.After(f.ScheduledArrival):
		return domain.FlightStatusArrived
	case now.After(f.ScheduledDeparture):
		if roll%2 == 0 {
			return domain.FlightStatusInFlight
		}
		return domain.FlightStatusDeparted
	case now.After(f.ScheduledDeparture.Add(-time.Hour)):
		return domain.FlightStatusBoarding
	default:
		switch roll % 3 {
		case 0:
			return domain.FlightStatusDelayed
		case 1:
			return domain.FlightStatusOnTime
		default:
			return domain.FlightStatusScheduled
		}
	}
}

var _ FlightUseCase = (*FlightService)(nil)

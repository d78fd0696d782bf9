package flights

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.FlightInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightInstance), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.FlightInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightInstance), args.Error(1)
}

func (m *MockFlightRepository) GetByNumberAndDate(ctx context.Context, number string, date time.Time) (*domain.FlightInstance, error) {
	args := m.Called(ctx, number, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightInstance), args.Error(1)
}

func (m *MockFlightRepository) ListActive(ctx context.Context) ([]domain.FlightInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightInstance), args.Error(1)
}

func (m *MockFlightRepository) UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus, gate string, estimatedDeparture, estimatedArrival time.Time) error {
	args := m.Called(ctx, id, status, gate, estimatedDeparture, estimatedArrival)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFlights(ctx context.Context) ([]domain.FlightInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightInstance), args.Error(1)
}

func (m *MockCache) SetFlights(ctx context.Context, flights []domain.FlightInstance) error {
	args := m.Called(ctx, flights)
	return args.Error(0)
}

type MockWeatherProvider struct {
	mock.Mock
}

func (m *MockWeatherProvider) Current(ctx context.Context, airportCode string) (*weather.Info, error) {
	args := m.Called(ctx, airportCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*weather.Info), args.Error(1)
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestList_CacheHit(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, &MockWeatherProvider{})

	ctx := context.Background()
	cached := []domain.FlightInstance{{ID: 1, Number: "AA123"}}
	cache.On("GetFlights", ctx).Return(cached, nil).Once()

	flights, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, cached, flights)
	repo.AssertNotCalled(t, "List")
}

func TestList_CacheMissFallsBackToRepo(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, &MockWeatherProvider{})

	ctx := context.Background()
	stored := []domain.FlightInstance{{ID: 1, Number: "AA123"}, {ID: 2, Number: "BA456"}}
	cache.On("GetFlights", ctx).Return(nil, errors.New("cache miss")).Once()
	repo.On("List", ctx).Return(stored, nil).Once()
	cache.On("SetFlights", ctx, stored).Return(nil).Once()

	flights, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, stored, flights)
	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestList_NilCache(t *testing.T) {
	repo := &MockFlightRepository{}
	service := NewFlightService(repo, nil, &MockWeatherProvider{})

	ctx := context.Background()
	stored := []domain.FlightInstance{{ID: 1, Number: "AA123"}}
	repo.On("List", ctx).Return(stored, nil).Once()

	flights, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, stored, flights)
}

func TestList_RepoError(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, &MockWeatherProvider{})

	ctx := context.Background()
	cache.On("GetFlights", ctx).Return(nil, errors.New("cache miss")).Once()
	repo.On("List", ctx).Return(nil, errors.New("connection reset")).Once()

	flights, err := service.List(ctx)

	assert.Error(t, err)
	assert.Nil(t, flights)
	cache.AssertNotCalled(t, "SetFlights")
}

func TestGetByNumberAndDate_Delegates(t *testing.T) {
	repo := &MockFlightRepository{}
	service := NewFlightService(repo, nil, &MockWeatherProvider{})

	ctx := context.Background()
	date := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	stored := &domain.FlightInstance{ID: 1, Number: "AA123", DepartureDate: date}
	repo.On("GetByNumberAndDate", ctx, "AA123", date).Return(stored, nil).Once()

	flight, err := service.GetByNumberAndDate(ctx, "AA123", date)

	assert.NoError(t, err)
	assert.Equal(t, stored, flight)
}

func TestWeather_Delegates(t *testing.T) {
	provider := &MockWeatherProvider{}
	service := NewFlightService(&MockFlightRepository{}, nil, provider)

	ctx := context.Background()
	info := &weather.Info{AirportCode: "JFK", Condition: "CLEAR"}
	provider.On("Current", ctx, "JFK").Return(info, nil).Once()

	got, err := service.Weather(ctx, "JFK")

	assert.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestRandomizeStatuses_DelaysScheduledFlight(t *testing.T) {
	repo := &MockFlightRepository{}
	// buf[0]=4 selects the flight, buf[1]=0 rolls Delayed, buf[2]=0 -> 15 min.
	service := NewFlightService(repo, nil, &MockWeatherProvider{},
		WithRandSource(bytes.NewReader([]byte{4, 0, 0})),
		WithClock(func() time.Time { return testNow }),
	)

	ctx := context.Background()
	flight := domain.FlightInstance{
		ID:                 1,
		Number:             "AA123",
		ScheduledDeparture: testNow.Add(5 * time.Hour),
		ScheduledArrival:   testNow.Add(11 * time.Hour),
		Status:             domain.FlightStatusScheduled,
		Gate:               "B12",
	}
	repo.On("ListActive", ctx).Return([]domain.FlightInstance{flight}, nil).Once()
	repo.On("UpdateStatus", ctx, int64(1), domain.FlightStatusDelayed, "B12",
		flight.ScheduledDeparture.Add(15*time.Minute),
		flight.ScheduledArrival.Add(15*time.Minute),
	).Return(nil).Once()

	mutated, err := service.RandomizeStatuses(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, mutated)
	repo.AssertExpectations(t)
}

func TestRandomizeStatuses_MarksOverdueFlightArrived(t *testing.T) {
	repo := &MockFlightRepository{}
	service := NewFlightService(repo, nil, &MockWeatherProvider{},
		WithRandSource(bytes.NewReader([]byte{0, 1, 1})),
		WithClock(func() time.Time { return testNow }),
	)

	ctx := context.Background()
	flight := domain.FlightInstance{
		ID:                 2,
		Number:             "BA456",
		ScheduledDeparture: testNow.Add(-8 * time.Hour),
		ScheduledArrival:   testNow.Add(-2 * time.Hour),
		Status:             domain.FlightStatusInFlight,
		Gate:               "C4",
	}
	repo.On("ListActive", ctx).Return([]domain.FlightInstance{flight}, nil).Once()
	repo.On("UpdateStatus", ctx, int64(2), domain.FlightStatusArrived, "C4",
		flight.EstimatedDeparture, flight.EstimatedArrival,
	).Return(nil).Once()

	mutated, err := service.RandomizeStatuses(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, mutated)
	repo.AssertExpectations(t)
}

func TestRandomizeStatuses_LeavesTerminalFlightsAlone(t *testing.T) {
	repo := &MockFlightRepository{}
	service := NewFlightService(repo, nil, &MockWeatherProvider{},
		WithRandSource(bytes.NewReader([]byte{0, 0, 0})),
		WithClock(func() time.Time { return testNow }),
	)

	ctx := context.Background()
	cancelled := domain.FlightInstance{
		ID:                 3,
		Number:             "LH789",
		ScheduledDeparture: testNow.Add(5 * time.Hour),
		ScheduledArrival:   testNow.Add(11 * time.Hour),
		Status:             domain.FlightStatusCancelled,
	}
	repo.On("ListActive", ctx).Return([]domain.FlightInstance{cancelled}, nil).Once()

	mutated, err := service.RandomizeStatuses(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, mutated)
	repo.AssertNotCalled(t, "UpdateStatus")
}

func TestRandomizeStatuses_SkipsMostFlights(t *testing.T) {
	repo := &MockFlightRepository{}
	// buf[0]=1 fails the 1-in-4 roll, so the flight is left alone.
	service := NewFlightService(repo, nil, &MockWeatherProvider{},
		WithRandSource(bytes.NewReader([]byte{1, 0, 0})),
		WithClock(func() time.Time { return testNow }),
	)

	ctx := context.Background()
	flight := domain.FlightInstance{ID: 1, Number: "AA123", ScheduledDeparture: testNow.Add(5 * time.Hour)}
	repo.On("ListActive", ctx).Return([]domain.FlightInstance{flight}, nil).Once()

	mutated, err := service.RandomizeStatuses(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, mutated)
	repo.AssertNotCalled(t, "UpdateStatus")
}

package booking

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/fare"
	"github.com/avelair/skybooking/internal/kafka"
	"github.com/avelair/skybooking/internal/payment"
	"github.com/avelair/skybooking/internal/repository"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, confirmationNumber string) (*domain.Booking, error)
	CheckIn(ctx context.Context, confirmationNumber string) (*domain.BoardingPass, error)
	CancelBooking(ctx context.Context, confirmationNumber string) (*domain.Booking, error)
	GetSeatMap(ctx context.Context, flightNumber string, date time.Time) (*domain.SeatMap, error)
	BoardingQRPayload(confirmationNumber string) (string, error)
	CompleteFlownBookings(ctx context.Context) (int64, error)
}

type Cache interface {
	AcquireSeatLock(ctx context.Context, flightID int64, seatNumber string, ttl time.Duration) (bool, error)
	ReleaseSeatLock(ctx context.Context, flightID int64, seatNumber string) error
	GetSeatMap(ctx context.Context, flightID int64) (*domain.SeatMap, error)
	SetSeatMap(ctx context.Context, flightID int64, sm *domain.SeatMap) error
	InvalidateSeatMap(ctx context.Context, flightID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type PaymentGateway interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amountCents int64) (*payment.RefundResult, error)
}

type CodeGenerator interface {
	ConfirmationNumber() (string, error)
	TrackingNumber() (string, error)
	BoardingQRPayload(confirmationNumber string) (string, error)
}

// SeatMapSpec describes the cabin laid out when a flight's seat inventory is
// first materialized.
type SeatMapSpec struct {
	Rows        int
	Letters     string
	ClassRanges []domain.ClassRange
}

type BookingService struct {
	bookings           repository.BookingRepository
	flights            repository.FlightRepository
	seats              repository.SeatRepository
	cache              Cache
	gateway            PaymentGateway
	codes              CodeGenerator
	producer           Producer
	notificationsTopic string
	seatMapSpec        SeatMapSpec
	seatLockTTL        time.Duration
	checkInWindow      time.Duration
	maxCodeAttempts    int
	rand               io.Reader
	now                func() time.Time
}

type CreateBookingInput struct {
	FlightNumber string
	FlightDate   time.Time
	UserID       string
	Email        string
	Passengers   []PassengerInput
	Baggage      []BaggageInput
	Card         payment.Card
}

type PassengerInput struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	SeatNumber  string
	SeatClass   domain.SeatClass
}

type BaggageInput struct {
	Type     string
	WeightKg float64
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) { s.notificationsTopic = topic }
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) { s.now = now }
}

func WithRandSource(r io.Reader) BookingServiceOption {
	return func(s *BookingService) { s.rand = r }
}

func WithCheckInWindow(d time.Duration) BookingServiceOption {
	return func(s *BookingService) { s.checkInWindow = d }
}

func WithConfirmationAttempts(n int) BookingServiceOption {
	return func(s *BookingService) { s.maxCodeAttempts = n }
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	seats repository.SeatRepository,
	cache Cache,
	gateway PaymentGateway,
	codes CodeGenerator,
	producer Producer,
	seatMapSpec SeatMapSpec,
	seatLockTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:        bookings,
		flights:         flights,
		seats:           seats,
		cache:           cache,
		gateway:         gateway,
		codes:           codes,
		producer:        producer,
		seatMapSpec:     seatMapSpec,
		seatLockTTL:     seatLockTTL,
		checkInWindow:   24 * time.Hour,
		maxCodeAttempts: 5,
		rand:            crand.Reader,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking runs the full workflow: validate, locate the flight, gate on
// departure time, price, authorize payment, then persist booking, passengers,
// baggage and seat reservations in one transaction. Payment happens before
// the durable write; a failed write triggers a compensating refund.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	now := s.now()

	flight, err := s.flights.GetByNumberAndDate(ctx, input.FlightNumber, input.FlightDate)
	if err != nil {
		return nil, err
	}
	if !flight.ScheduledDeparture.After(now) {
		return nil, fmt.Errorf("flight %s: %w", flight.Number, domain.ErrFlightDeparted)
	}

	passengers := make([]domain.Passenger, 0, len(input.Passengers))
	for _, p := range input.Passengers {
		passengers = append(passengers, domain.Passenger{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: p.DateOfBirth,
			SeatNumber:  p.SeatNumber,
			SeatClass:   p.SeatClass,
		})
	}

	totalCents, err := fare.Total(passengers)
	if err != nil {
		return nil, err
	}

	if err := s.ensureSeatMap(ctx, flight); err != nil {
		return nil, err
	}

	locked, err := s.lockSeats(ctx, flight.ID, passengers)
	if err != nil {
		s.unlockSeats(ctx, flight.ID, locked)
		return nil, err
	}
	defer s.unlockSeats(ctx, flight.ID, locked)

	charge, err := s.gateway.Charge(ctx, payment.ChargeRequest{AmountCents: totalCents, Card: input.Card})
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if !charge.Success {
		return nil, &domain.PaymentDeclinedError{Reason: charge.ErrorMessage}
	}

	booking := &domain.Booking{
		UserID:        input.UserID,
		Email:         input.Email,
		FlightID:      flight.ID,
		FlightNumber:  flight.Number,
		FlightDate:    flight.DepartureDate,
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusCompleted,
		TotalCents:    totalCents,
		PaymentTxnID:  charge.TransactionID,
		Passengers:    passengers,
	}
	for _, b := range input.Baggage {
		booking.Baggage = append(booking.Baggage, domain.BaggageItem{
			Type:     b.Type,
			WeightKg: b.WeightKg,
			Status:   domain.BaggageStatusRegistered,
		})
	}

	if err := s.persistWithRetry(ctx, booking); err != nil {
		s.compensate(ctx, charge.TransactionID, totalCents, err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSeatMap(ctx, flight.ID); err != nil {
			log.Printf("invalidate seat map for flight %d: %v", flight.ID, err)
		}
	}
	s.notify(ctx, "booking_confirmed", booking)
	return booking, nil
}

// persistWithRetry regenerates codes and retries on unique-index collisions,
// bounded by maxCodeAttempts.
func (s *BookingService) persistWithRetry(ctx context.Context, booking *domain.Booking) error {
	var err error
	for attempt := 0; attempt < s.maxCodeAttempts; attempt++ {
		if err = s.assignCodes(booking); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		err = s.bookings.Create(ctx, booking)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrConfirmationCollision) {
			continue
		}
		if errors.Is(err, domain.ErrSeatUnavailable) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return fmt.Errorf("confirmation attempts exhausted: %w", domain.ErrConfirmationCollision)
}

func (s *BookingService) assignCodes(booking *domain.Booking) error {
	confirmation, err := s.codes.ConfirmationNumber()
	if err != nil {
		return err
	}
	booking.ConfirmationNumber = confirmation
	for i := range booking.Baggage {
		tracking, err := s.codes.TrackingNumber()
		if err != nil {
			return err
		}
		booking.Baggage[i].TrackingNumber = tracking
	}
	return nil
}

// compensate refunds a charge whose booking could not be persisted. A failed
// refund is logged at error level for manual reconciliation.
func (s *BookingService) compensate(ctx context.Context, transactionID string, amountCents int64, cause error) {
	refund, err := s.gateway.Refund(ctx, transactionID, amountCents)
	if err != nil {
		log.Printf("ERROR: refund %s after failed persist (%v) errored: %v, manual reconciliation required", transactionID, cause, err)
		return
	}
	if !refund.Success {
		log.Printf("ERROR: refund %s after failed persist (%v) rejected: %s, manual reconciliation required", transactionID, cause, refund.ErrorMessage)
		return
	}
	log.Printf("refunded %s after failed persist: %v", transactionID, cause)
}

func (s *BookingService) lockSeats(ctx context.Context, flightID int64, passengers []domain.Passenger) ([]string, error) {
	if s.cache == nil {
		return nil, nil
	}
	locked := make([]string, 0, len(passengers))
	for _, p := range passengers {
		if p.SeatNumber == "" {
			continue
		}
		ok, err := s.cache.AcquireSeatLock(ctx, flightID, p.SeatNumber, s.seatLockTTL)
		if err != nil {
			return locked, fmt.Errorf("seat lock: %w: %v", domain.ErrUpstreamUnavailable, err)
		}
		if !ok {
			return locked, fmt.Errorf("seat %s: %w", p.SeatNumber, domain.ErrSeatUnavailable)
		}
		locked = append(locked, p.SeatNumber)
	}
	return locked, nil
}

func (s *BookingService) unlockSeats(ctx context.Context, flightID int64, seats []string) {
	if s.cache == nil {
		return
	}
	for _, seat := range seats {
		if err := s.cache.ReleaseSeatLock(ctx, flightID, seat); err != nil {
			log.Printf("release seat lock %s on flight %d: %v", seat, flightID, err)
		}
	}
}

func (s *BookingService) GetBooking(ctx context.Context, confirmationNumber string) (*domain.Booking, error) {
	if confirmationNumber == "" {
		return nil, fmt.Errorf("confirmation number required: %w", domain.ErrValidation)
	}
	return s.bookings.GetByConfirmation(ctx, confirmationNumber)
}

// CheckIn validates the 24h window and booking state, flips the booking to
// CheckedIn and derives a boarding pass from one consistent flight snapshot.
func (s *BookingService) CheckIn(ctx context.Context, confirmationNumber string) (*domain.BoardingPass, error) {
	booking, err := s.bookings.GetByConfirmation(ctx, confirmationNumber)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusConfirmed {
		return nil, fmt.Errorf("booking %s is %s: %w", confirmationNumber, booking.Status, domain.ErrInvalidState)
	}

	flight, err := s.flights.GetByID(ctx, booking.FlightID)
	if err != nil {
		return nil, err
	}
	opensAt := flight.ScheduledDeparture.Add(-s.checkInWindow)
	if s.now().Before(opensAt) {
		return nil, &domain.CheckInNotOpenError{OpensAt: opensAt}
	}

	updated, err := s.bookings.CheckIn(ctx, confirmationNumber, s.now())
	if err != nil {
		return nil, err
	}

	qrPayload, err := s.codes.BoardingQRPayload(confirmationNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	primary := updated.Passengers[0]
	seat := primary.SeatNumber
	if seat == "" {
		seat = "TBD"
	}

	s.notify(ctx, "booking_checked_in", updated)
	return &domain.BoardingPass{
		ConfirmationNumber: confirmationNumber,
		PassengerName:      primary.FullName(),
		FlightNumber:       flight.Number,
		SeatNumber:         seat,
		Gate:               flight.Gate,
		BoardingTime:       flight.ScheduledDeparture.Add(-30 * time.Minute),
		QRPayload:          qrPayload,
	}, nil
}

// CancelBooking voids a Confirmed or CheckedIn booking: the status flips
// first, then the charge is refunded and the seats go back to inventory. A
// failed refund does not resurrect the booking; it is logged for manual
// reconciliation like a failed compensation.
func (s *BookingService) CancelBooking(ctx context.Context, confirmationNumber string) (*domain.Booking, error) {
	cancelled, err := s.bookings.Cancel(ctx, confirmationNumber)
	if err != nil {
		return nil, err
	}

	if cancelled.PaymentTxnID != "" {
		refund, err := s.gateway.Refund(ctx, cancelled.PaymentTxnID, cancelled.TotalCents)
		switch {
		case err != nil:
			log.Printf("ERROR: refund %s for cancelled booking %s errored: %v, manual reconciliation required",
				cancelled.PaymentTxnID, confirmationNumber, err)
		case !refund.Success:
			log.Printf("ERROR: refund %s for cancelled booking %s rejected: %s, manual reconciliation required",
				cancelled.PaymentTxnID, confirmationNumber, refund.ErrorMessage)
		}
	}

	for _, p := range cancelled.Passengers {
		if p.SeatNumber == "" {
			continue
		}
		if err := s.seats.Release(ctx, cancelled.FlightID, p.SeatNumber); err != nil {
			log.Printf("release seat %s on flight %d after cancellation: %v", p.SeatNumber, cancelled.FlightID, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.InvalidateSeatMap(ctx, cancelled.FlightID); err != nil {
			log.Printf("invalidate seat map for flight %d: %v", cancelled.FlightID, err)
		}
	}

	s.notify(ctx, "booking_cancelled", cancelled)
	return cancelled, nil
}

// BoardingQRPayload re-derives a display token for an issued pass.
func (s *BookingService) BoardingQRPayload(confirmationNumber string) (string, error) {
	return s.codes.BoardingQRPayload(confirmationNumber)
}

func (s *BookingService) GetSeatMap(ctx context.Context, flightNumber string, date time.Time) (*domain.SeatMap, error) {
	flight, err := s.flights.GetByNumberAndDate(ctx, flightNumber, date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, err := s.cache.GetSeatMap(ctx, flight.ID); err == nil && cached != nil {
			return cached, nil
		}
	}

	if err := s.ensureSeatMap(ctx, flight); err != nil {
		return nil, err
	}
	sm, err := s.seats.GetSeatMap(ctx, flight)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetSeatMap(ctx, flight.ID, sm); err != nil {
			log.Printf("cache seat map for flight %d: %v", flight.ID, err)
		}
	}
	return sm, nil
}

func (s *BookingService) CompleteFlownBookings(ctx context.Context) (int64, error) {
	return s.bookings.CompleteArrivedBefore(ctx, s.now())
}

func (s *BookingService) ensureSeatMap(ctx context.Context, flight *domain.FlightInstance) error {
	sm, err := domain.GenerateSeatMap(flight.Number, flight.DepartureDate,
		s.seatMapSpec.Rows, s.seatMapSpec.Letters, s.seatMapSpec.ClassRanges, s.rand)
	if err != nil {
		return err
	}
	return s.seats.EnsureSeatMap(ctx, flight.ID, sm)
}

// notify publishes the confirmation event. Delivery is best effort: a dead
// broker must not fail a booking that is already durable.
func (s *BookingService) notify(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.notificationsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:               eventType,
		ConfirmationNumber: booking.ConfirmationNumber,
		UserID:             booking.UserID,
		Email:              booking.Email,
		FlightNumber:       booking.FlightNumber,
		FlightDate:         booking.FlightDate,
		Status:             string(booking.Status),
		TotalCents:         booking.TotalCents,
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.producer.Publish(publishCtx, s.notificationsTopic, booking.ConfirmationNumber, event); err != nil {
		log.Printf("WARNING: publish %s for booking %s: %v", eventType, booking.ConfirmationNumber, err)
	}
}

func validateInput(input CreateBookingInput) error {
	if input.FlightNumber == "" {
		return fmt.Errorf("flight number required: %w", domain.ErrValidation)
	}
	if input.FlightDate.IsZero() {
		return fmt.Errorf("flight date required: %w", domain.ErrValidation)
	}
	if input.UserID == "" {
		return fmt.Errorf("user id required: %w", domain.ErrValidation)
	}
	if len(input.Passengers) == 0 {
		return fmt.Errorf("at least one passenger required: %w", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(input.Passengers))
	for i, p := range input.Passengers {
		if p.FirstName == "" || p.LastName == "" {
			return fmt.Errorf("passenger %d: first and last name required: %w", i+1, domain.ErrValidation)
		}
		if !p.SeatClass.Valid() {
			return fmt.Errorf("passenger %d: unknown seat class %q: %w", i+1, p.SeatClass, domain.ErrValidation)
		}
		if p.SeatNumber != "" {
			if seen[p.SeatNumber] {
				return fmt.Errorf("seat %s selected twice: %w", p.SeatNumber, domain.ErrValidation)
			}
			seen[p.SeatNumber] = true
		}
	}
	for i, b := range input.Baggage {
		if b.WeightKg <= 0 {
			return fmt.Errorf("baggage item %d: weight must be positive: %w", i+1, domain.ErrValidation)
		}
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)

package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCheckedIn BookingStatus = "CHECKED_IN"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// CanTransitionTo enforces the booking lifecycle:
// Pending -> Confirmed -> CheckedIn -> Completed, with Cancelled reachable
// from any non-terminal state. Completed and Cancelled are terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCheckedIn || next == BookingStatusCompleted || next == BookingStatusCancelled
	case BookingStatusCheckedIn:
		return next == BookingStatusCompleted || next == BookingStatusCancelled
	case BookingStatusCompleted, BookingStatusCancelled:
		return false
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

type BaggageStatus string

const (
	BaggageStatusRegistered BaggageStatus = "REGISTERED"
	BaggageStatusLoaded     BaggageStatus = "LOADED"
	BaggageStatusDelivered  BaggageStatus = "DELIVERED"
	BaggageStatusLost       BaggageStatus = "LOST"
)

// Booking is the aggregate root. It owns its passengers and baggage items
// and references its flight instance and user by id only.
type Booking struct {
	ID                 int64         `json:"id"`
	ConfirmationNumber string        `json:"confirmation_number"`
	UserID             string        `json:"user_id"`
	Email              string        `json:"email"`
	FlightID           int64         `json:"flight_id"`
	FlightNumber       string        `json:"flight_number"`
	FlightDate         time.Time     `json:"flight_date"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	TotalCents         int64         `json:"total_cents"`
	PaymentTxnID       string        `json:"payment_txn_id"`
	Passengers         []Passenger   `json:"passengers"`
	Baggage            []BaggageItem `json:"baggage"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type Passenger struct {
	ID          int64      `json:"id"`
	BookingID   int64      `json:"booking_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	SeatNumber  string     `json:"seat_number"`
	SeatClass   SeatClass  `json:"seat_class"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

func (p Passenger) FullName() string {
	return p.FirstName + " " + p.LastName
}

type BaggageItem struct {
	ID             int64         `json:"id"`
	BookingID      int64         `json:"booking_id"`
	TrackingNumber string        `json:"tracking_number"`
	Type           string        `json:"type"`
	WeightKg       float64       `json:"weight_kg"`
	Status         BaggageStatus `json:"status"`
}

// BoardingPass is derived at check-in and never persisted.
type BoardingPass struct {
	ConfirmationNumber string    `json:"confirmation_number"`
	PassengerName      string    `json:"passenger_name"`
	FlightNumber       string    `json:"flight_number"`
	SeatNumber         string    `json:"seat_number"`
	Gate               string    `json:"gate"`
	BoardingTime       time.Time `json:"boarding_time"`
	QRPayload          string    `json:"qr_payload"`
}

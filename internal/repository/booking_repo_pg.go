package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	// Create persists the booking, its passengers and baggage, and flips the
	// selected seats to unavailable, all in one transaction.
	Create(ctx context.Context, booking *domain.Booking) error
	GetByConfirmation(ctx context.Context, confirmationNumber string) (*domain.Booking, error)
	CheckIn(ctx context.Context, confirmationNumber string, at time.Time) (*domain.Booking, error)
	Cancel(ctx context.Context, confirmationNumber string) (*domain.Booking, error)
	CompleteArrivedBefore(ctx context.Context, deadline time.Time) (int64, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const uniqueViolation = "23505"

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Conditional update is the double-booking guard: only one transaction
	// can flip a seat from available, and losing transactions see zero rows.
	for i := range booking.Passengers {
		p := &booking.Passengers[i]
		if p.SeatNumber == "" {
			continue
		}
		cmd, err := tx.Exec(ctx,
			`UPDATE seats SET available=false, updated_at=now() WHERE flight_id=$1 AND seat_number=$2 AND available`,
			booking.FlightID, p.SeatNumber)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM seats WHERE flight_id=$1 AND seat_number=$2)`,
				booking.FlightID, p.SeatNumber).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("seat %s: %w", p.SeatNumber, domain.ErrNotFound)
			}
			return fmt.Errorf("seat %s: %w", p.SeatNumber, domain.ErrSeatUnavailable)
		}
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO bookings (confirmation_number, user_id, email, flight_id, status, payment_status, total_cents, payment_txn_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		booking.ConfirmationNumber, booking.UserID, booking.Email, booking.FlightID,
		booking.Status, booking.PaymentStatus, booking.TotalCents, booking.PaymentTxnID).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return translateUnique(err)
	}

	for i := range booking.Passengers {
		p := &booking.Passengers[i]
		p.BookingID = booking.ID
		if err := tx.QueryRow(ctx,
			`INSERT INTO passengers (booking_id, first_name, last_name, date_of_birth, seat_number, seat_class)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			booking.ID, p.FirstName, p.LastName, p.DateOfBirth, p.SeatNumber, p.SeatClass).Scan(&p.ID); err != nil {
			return err
		}
	}

	for i := range booking.Baggage {
		b := &booking.Baggage[i]
		b.BookingID = booking.ID
		if err := tx.QueryRow(ctx,
			`INSERT INTO baggage_items (booking_id, tracking_number, type, weight_kg, status)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			booking.ID, b.TrackingNumber, b.Type, b.WeightKg, b.Status).Scan(&b.ID); err != nil {
			return translateUnique(err)
		}
	}

	return tx.Commit(ctx)
}

// translateUnique maps unique-index violations (confirmation or tracking
// numbers) to the retryable collision error.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrConfirmationCollision)
	}
	return err
}

const bookingColumns = `b.id, b.confirmation_number, b.user_id, b.email, b.flight_id,
	f.flight_number, f.departure_date, b.status, b.payment_status, b.total_cents,
	b.payment_txn_id, b.created_at, b.updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.ConfirmationNumber, &b.UserID, &b.Email, &b.FlightID,
		&b.FlightNumber, &b.FlightDate, &b.Status, &b.PaymentStatus, &b.TotalCents,
		&b.PaymentTxnID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) GetByConfirmation(ctx context.Context, confirmationNumber string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings b JOIN flights f ON f.id = b.flight_id WHERE b.confirmation_number=$1`,
		confirmationNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", confirmationNumber, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) loadChildren(ctx context.Context, b *domain.Booking) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, booking_id, first_name, last_name, date_of_birth, seat_number, seat_class, checked_in, checked_in_at
		 FROM passengers WHERE booking_id=$1 ORDER BY id`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Passenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FirstName, &p.LastName, &p.DateOfBirth,
			&p.SeatNumber, &p.SeatClass, &p.CheckedIn, &p.CheckedInAt); err != nil {
			return err
		}
		b.Passengers = append(b.Passengers, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	bagRows, err := r.db.Query(ctx,
		`SELECT id, booking_id, tracking_number, type, weight_kg, status FROM baggage_items WHERE booking_id=$1 ORDER BY id`, b.ID)
	if err != nil {
		return err
	}
	defer bagRows.Close()
	for bagRows.Next() {
		var item domain.BaggageItem
		if err := bagRows.Scan(&item.ID, &item.BookingID, &item.TrackingNumber, &item.Type, &item.WeightKg, &item.Status); err != nil {
			return err
		}
		b.Baggage = append(b.Baggage, item)
	}
	return bagRows.Err()
}

// CheckIn flips a Confirmed booking to CheckedIn and stamps every passenger,
// guarded by the current status so a repeated call cannot re-enter.
func (r *PGBookingRepository) CheckIn(ctx context.Context, confirmationNumber string, at time.Time) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`UPDATE bookings SET status=$1, updated_at=now() WHERE confirmation_number=$2 AND status=$3 RETURNING id`,
		domain.BookingStatusCheckedIn, confirmationNumber, domain.BookingStatusConfirmed).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE confirmation_number=$1)`, confirmationNumber).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("booking %s: %w", confirmationNumber, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("booking %s: %w", confirmationNumber, domain.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE passengers SET checked_in=true, checked_in_at=$1 WHERE booking_id=$2`, at, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return r.GetByConfirmation(ctx, confirmationNumber)
}

// Cancel flips a non-terminal booking to Cancelled and marks the payment
// refunded, guarded by the current status like CheckIn.
func (r *PGBookingRepository) Cancel(ctx context.Context, confirmationNumber string) (*domain.Booking, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`UPDATE bookings SET status=$1, payment_status=$2, updated_at=now()
		 WHERE confirmation_number=$3 AND status IN ($4, $5) RETURNING id`,
		domain.BookingStatusCancelled, domain.PaymentStatusRefunded,
		confirmationNumber, domain.BookingStatusConfirmed, domain.BookingStatusCheckedIn).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE confirmation_number=$1)`, confirmationNumber).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("booking %s: %w", confirmationNumber, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("booking %s: %w", confirmationNumber, domain.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}

	return r.GetByConfirmation(ctx, confirmationNumber)
}

// CompleteArrivedBefore closes out bookings whose flight has already arrived.
func (r *PGBookingRepository) CompleteArrivedBefore(ctx context.Context, deadline time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE bookings SET status=$1, updated_at=now()
		 WHERE status IN ($2, $3)
		 AND flight_id IN (SELECT id FROM flights WHERE scheduled_arrival <= $4)`,
		domain.BookingStatusCompleted, domain.BookingStatusConfirmed, domain.BookingStatusCheckedIn, deadline)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)

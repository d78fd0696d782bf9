package repository

import (
	"context"
	"fmt"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeatRepository interface {
	// EnsureSeatMap persists the generated map on first touch; subsequent
	// calls are no-ops so the stored availability stays authoritative.
	EnsureSeatMap(ctx context.Context, flightID int64, sm *domain.SeatMap) error
	GetSeatMap(ctx context.Context, flight *domain.FlightInstance) (*domain.SeatMap, error)
	Release(ctx context.Context, flightID int64, seatNumber string) error
}

type PGSeatRepository struct {
	db *pgxpool.Pool
}

func NewSeatRepository(db *pgxpool.Pool) SeatRepository {
	return &PGSeatRepository{db: db}
}

func (r *PGSeatRepository) EnsureSeatMap(ctx context.Context, flightID int64, sm *domain.SeatMap) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the flight row so two concurrent first touches cannot both seed.
	var existing int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM seats WHERE flight_id = (SELECT id FROM flights WHERE id=$1 FOR UPDATE)`,
		flightID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return tx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	for _, row := range sm.Rows {
		for _, seat := range row.Seats {
			batch.Queue(`INSERT INTO seats (flight_id, seat_number, row_number, letter, class, available)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				flightID, seat.Number, seat.Row, seat.Letter, seat.Class, seat.Available)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed seat map for flight %d: %w", flightID, err)
	}
	return tx.Commit(ctx)
}

func (r *PGSeatRepository) GetSeatMap(ctx context.Context, flight *domain.FlightInstance) (*domain.SeatMap, error) {
	rows, err := r.db.Query(ctx,
		`SELECT seat_number, row_number, letter, class, available FROM seats WHERE flight_id=$1 ORDER BY row_number, letter`,
		flight.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sm := &domain.SeatMap{FlightNumber: flight.Number, FlightDate: flight.DepartureDate}
	var current *domain.SeatRow
	for rows.Next() {
		var seat domain.Seat
		if err := rows.Scan(&seat.Number, &seat.Row, &seat.Letter, &seat.Class, &seat.Available); err != nil {
			return nil, err
		}
		if current == nil || current.Number != seat.Row {
			sm.Rows = append(sm.Rows, domain.SeatRow{Number: seat.Row})
			current = &sm.Rows[len(sm.Rows)-1]
		}
		current.Seats = append(current.Seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sm.Rows) == 0 {
		return nil, fmt.Errorf("seat map for flight %s: %w", flight.Number, domain.ErrNotFound)
	}
	return sm, nil
}

func (r *PGSeatRepository) Release(ctx context.Context, flightID int64, seatNumber string) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE seats SET available=true, updated_at=now() WHERE flight_id=$1 AND seat_number=$2`,
		flightID, seatNumber)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("seat %s on flight %d: %w", seatNumber, flightID, domain.ErrNotFound)
	}
	return nil
}

var _ SeatRepository = (*PGSeatRepository)(nil)

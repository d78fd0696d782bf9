package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.FlightInstance, error)
	GetByID(ctx context.Context, id int64) (*domain.FlightInstance, error)
	GetByNumberAndDate(ctx context.Context, number string, date time.Time) (*domain.FlightInstance, error)
	ListActive(ctx context.Context) ([]domain.FlightInstance, error)
	UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus, gate string, estimatedDeparture, estimatedArrival time.Time) error
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, flight_number, departure_date, from_airport, to_airport,
	scheduled_departure, scheduled_arrival, estimated_departure, estimated_arrival,
	status, gate, terminal, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.FlightInstance, error) {
	var f domain.FlightInstance
	if err := row.Scan(&f.ID, &f.Number, &f.DepartureDate, &f.FromAirport, &f.ToAirport,
		&f.ScheduledDeparture, &f.ScheduledArrival, &f.EstimatedDeparture, &f.EstimatedArrival,
		&f.Status, &f.Gate, &f.Terminal, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.FlightInstance, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY scheduled_departure`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.FlightInstance, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.FlightInstance, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return f, err
}

func (r *PGFlightRepository) GetByNumberAndDate(ctx context.Context, number string, date time.Time) (*domain.FlightInstance, error) {
	f, err := scanFlight(r.db.QueryRow(ctx,
		`SELECT `+flightColumns+` FROM flights WHERE flight_number=$1 AND departure_date=$2::date`,
		number, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flight %s on %s: %w", number, date.Format("2006-01-02"), domain.ErrNotFound)
	}
	return f, err
}

func (r *PGFlightRepository) ListActive(ctx context.Context) ([]domain.FlightInstance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+flightColumns+` FROM flights WHERE status NOT IN ($1, $2) ORDER BY scheduled_departure`,
		domain.FlightStatusArrived, domain.FlightStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.FlightInstance, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus, gate string, estimatedDeparture, estimatedArrival time.Time) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE flights SET status=$1, gate=$2, estimated_departure=$3, estimated_arrival=$4, updated_at=now() WHERE id=$5`,
		status, gate, estimatedDeparture, estimatedArrival, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)

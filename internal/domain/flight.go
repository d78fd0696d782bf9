package domain

import (
	"fmt"
	"time"
)

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusOnTime    FlightStatus = "ON_TIME"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusBoarding  FlightStatus = "BOARDING"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusInFlight  FlightStatus = "IN_FLIGHT"
	FlightStatusArrived   FlightStatus = "ARRIVED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
)

// Terminal reports whether a flight can no longer change status.
func (s FlightStatus) Terminal() bool {
	switch s {
	case FlightStatusArrived, FlightStatusCancelled:
		return true
	case FlightStatusScheduled, FlightStatusOnTime, FlightStatusDelayed,
		FlightStatusBoarding, FlightStatusDeparted, FlightStatusInFlight:
		return false
	}
	return false
}

// FlightInstance is one flight on one day, identified by (number, departure date).
type FlightInstance struct {
	ID                 int64        `json:"id"`
	Number             string       `json:"number"`
	DepartureDate      time.Time    `json:"departure_date"`
	FromAirport        string       `json:"from_airport"`
	ToAirport          string       `json:"to_airport"`
	ScheduledDeparture time.Time    `json:"scheduled_departure"`
	ScheduledArrival   time.Time    `json:"scheduled_arrival"`
	EstimatedDeparture time.Time    `json:"estimated_departure"`
	EstimatedArrival   time.Time    `json:"estimated_arrival"`
	Status             FlightStatus `json:"status"`
	Gate               string       `json:"gate"`
	Terminal           string       `json:"terminal"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (f *FlightInstance) Validate() error {
	if !f.ScheduledArrival.After(f.ScheduledDeparture) {
		return fmt.Errorf("scheduled arrival must be after scheduled departure: %w", ErrValidation)
	}
	return nil
}

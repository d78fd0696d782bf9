package domain

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type SeatClass string

const (
	SeatClassEconomy        SeatClass = "ECONOMY"
	SeatClassPremiumEconomy SeatClass = "PREMIUM_ECONOMY"
	SeatClassBusiness       SeatClass = "BUSINESS"
	SeatClassFirst          SeatClass = "FIRST"
)

func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassEconomy, SeatClassPremiumEconomy, SeatClassBusiness, SeatClassFirst:
		return true
	}
	return false
}

type Seat struct {
	Number    string    `json:"number"`
	Row       int       `json:"row"`
	Letter    string    `json:"letter"`
	Class     SeatClass `json:"class"`
	Available bool      `json:"available"`
}

type SeatRow struct {
	Number int    `json:"number"`
	Seats  []Seat `json:"seats"`
}

// ClassRange assigns a seat class to rows FromRow..ToRow inclusive.
type ClassRange struct {
	FromRow int       `json:"from_row"`
	ToRow   int       `json:"to_row"`
	Class   SeatClass `json:"class"`
}

// SeatMap holds seat inventory for one flight instance. Reserve and Release
// are serialized per map; the persisted seats table is the durable guard
// against double booking across processes.
type SeatMap struct {
	FlightNumber string    `json:"flight_number"`
	FlightDate   time.Time `json:"flight_date"`
	Rows         []SeatRow `json:"rows"`

	mu    sync.Mutex
	index map[string]*Seat
}

// occupancyThreshold keeps roughly 70% of seats available when seeding from
// a random source: a byte below 179 (179/256) marks the seat available.
const occupancyThreshold = 179

// GenerateSeatMap builds rowCount rows of seats, one per letter, with classes
// assigned by row range. Initial availability is seeded from rnd so tests can
// supply a deterministic source.
func GenerateSeatMap(flightNumber string, flightDate time.Time, rowCount int, letters string, ranges []ClassRange, rnd io.Reader) (*SeatMap, error) {
	if rowCount <= 0 || len(letters) == 0 {
		return nil, fmt.Errorf("seat map dimensions: %w", ErrValidation)
	}
	buf := make([]byte, rowCount*len(letters))
	if _, err := io.ReadFull(rnd, buf); err != nil {
		return nil, fmt.Errorf("seed seat availability: %w", err)
	}

	sm := &SeatMap{
		FlightNumber: flightNumber,
		FlightDate:   flightDate,
		Rows:         make([]SeatRow, 0, rowCount),
	}
	i := 0
	for row := 1; row <= rowCount; row++ {
		r := SeatRow{Number: row, Seats: make([]Seat, 0, len(letters))}
		for _, letter := range letters {
			r.Seats = append(r.Seats, Seat{
				Number:    fmt.Sprintf("%d%c", row, letter),
				Row:       row,
				Letter:    string(letter),
				Class:     classForRow(row, ranges),
				Available: buf[i] < occupancyThreshold,
			})
			i++
		}
		sm.Rows = append(sm.Rows, r)
	}
	return sm, nil
}

func classForRow(row int, ranges []ClassRange) SeatClass {
	for _, r := range ranges {
		if row >= r.FromRow && row <= r.ToRow {
			return r.Class
		}
	}
	return SeatClassEconomy
}

func (m *SeatMap) ensureIndex() {
	if m.index != nil {
		return
	}
	m.index = make(map[string]*Seat)
	for ri := range m.Rows {
		for si := range m.Rows[ri].Seats {
			seat := &m.Rows[ri].Seats[si]
			m.index[seat.Number] = seat
		}
	}
}

func (m *SeatMap) Seat(number string) (*Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureIndex()
	seat, ok := m.index[number]
	if !ok {
		return nil, fmt.Errorf("seat %s: %w", number, ErrNotFound)
	}
	return seat, nil
}

func (m *SeatMap) IsAvailable(number string) (bool, error) {
	seat, err := m.Seat(number)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return seat.Available, nil
}

// Reserve transitions a seat available -> unavailable exactly once.
func (m *SeatMap) Reserve(number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureIndex()
	seat, ok := m.index[number]
	if !ok {
		return fmt.Errorf("seat %s: %w", number, ErrNotFound)
	}
	if !seat.Available {
		return fmt.Errorf("seat %s: %w", number, ErrSeatUnavailable)
	}
	seat.Available = false
	return nil
}

// Release is the inverse of Reserve, used on cancellation and rollback.
func (m *SeatMap) Release(number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureIndex()
	seat, ok := m.index[number]
	if !ok {
		return fmt.Errorf("seat %s: %w", number, ErrNotFound)
	}
	seat.Available = true
	return nil
}

// AvailableCount reports how many seats are still free.
func (m *SeatMap) AvailableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.Rows {
		for _, seat := range row.Seats {
			if seat.Available {
				n++
			}
		}
	}
	return n
}

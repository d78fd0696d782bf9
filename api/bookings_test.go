package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, confirmationNumber string) (*domain.Booking, error) {
	args := m.Called(ctx, confirmationNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CheckIn(ctx context.Context, confirmationNumber string) (*domain.BoardingPass, error) {
	args := m.Called(ctx, confirmationNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BoardingPass), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, confirmationNumber string) (*domain.Booking, error) {
	args := m.Called(ctx, confirmationNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetSeatMap(ctx context.Context, flightNumber string, date time.Time) (*domain.SeatMap, error) {
	args := m.Called(ctx, flightNumber, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatMap), args.Error(1)
}

func (m *MockBookingUseCase) BoardingQRPayload(confirmationNumber string) (string, error) {
	args := m.Called(confirmationNumber)
	return args.String(0), args.Error(1)
}

func (m *MockBookingUseCase) CompleteFlownBookings(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newBookingRouter(service booking.BookingUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewBookingHandler(service).Register(router.Group("/bookings"))
	return router
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"flight_number": "AA123",
		"flight_date":   "2026-03-11",
		"email":         "ada@example.com",
		"passengers": []map[string]interface{}{
			{"first_name": "Ada", "last_name": "Lovelace", "seat_number": "12A", "seat_class": "ECONOMY"},
		},
		"card": map[string]interface{}{
			"number": "4111111111111111", "holder": "ADA LOVELACE",
			"expiry_month": 12, "expiry_year": 2028, "cvv": "123",
		},
	}
}

func TestBookingHandler_Create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	created := &domain.Booking{
		ConfirmationNumber: "Q7M2K9",
		Status:             domain.BookingStatusConfirmed,
		PaymentStatus:      domain.PaymentStatusCompleted,
		TotalCents:         29999,
		FlightNumber:       "AA123",
		FlightDate:         time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
	}
	mockService.On("CreateBooking", mock.Anything, mock.MatchedBy(func(in booking.CreateBookingInput) bool {
		return in.FlightNumber == "AA123" && in.UserID == "user-42" && len(in.Passengers) == 1
	})).Return(created, nil).Once()

	body, _ := json.Marshal(validCreateBody())
	req := httptest.NewRequest(http.MethodPost, "/bookings/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Q7M2K9", response.ConfirmationNumber)
	assert.Equal(t, string(domain.BookingStatusConfirmed), response.Status)
	assert.Equal(t, int64(29999), response.TotalCents)
	assert.Equal(t, "2026-03-11", response.FlightDate)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_Create_MissingUserHeader(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	body, _ := json.Marshal(validCreateBody())
	req := httptest.NewRequest(http.MethodPost, "/bookings/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CreateBooking")
}

func TestBookingHandler_Create_InvalidBody(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	testCases := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{name: "bad email", mutate: func(b map[string]interface{}) { b["email"] = "not-an-email" }},
		{name: "bad date", mutate: func(b map[string]interface{}) { b["flight_date"] = "11-03-2026" }},
		{name: "no passengers", mutate: func(b map[string]interface{}) { b["passengers"] = []map[string]interface{}{} }},
		{
			name: "unknown seat class",
			mutate: func(b map[string]interface{}) {
				b["passengers"] = []map[string]interface{}{
					{"first_name": "Ada", "last_name": "Lovelace", "seat_class": "COACH"},
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body := validCreateBody()
			tc.mutate(body)
			raw, _ := json.Marshal(body)

			req := httptest.NewRequest(http.MethodPost, "/bookings/", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-ID", "user-42")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	mockService.AssertNotCalled(t, "CreateBooking")
}

func TestBookingHandler_Create_PaymentDeclined(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, &domain.PaymentDeclinedError{Reason: "card declined by issuing bank"}).Once()

	body, _ := json.Marshal(validCreateBody())
	req := httptest.NewRequest(http.MethodPost, "/bookings/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "card declined by issuing bank")
}

func TestBookingHandler_Create_SeatUnavailable(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, domain.ErrSeatUnavailable).Once()

	body, _ := json.Marshal(validCreateBody())
	req := httptest.NewRequest(http.MethodPost, "/bookings/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_Create_InternalErrorIsOpaque(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, errors.New("pq: connection reset")).Once()

	body, _ := json.Marshal(validCreateBody())
	req := httptest.NewRequest(http.MethodPost, "/bookings/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal error")
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestBookingHandler_Get(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	stored := &domain.Booking{ConfirmationNumber: "Q7M2K9", Status: domain.BookingStatusConfirmed}
	mockService.On("GetBooking", mock.Anything, "Q7M2K9").Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/Q7M2K9", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Q7M2K9", response.ConfirmationNumber)
}

func TestBookingHandler_Get_NotFound(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("GetBooking", mock.Anything, "NOSUCH").Return(nil, domain.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/NOSUCH", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingHandler_CheckIn(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	pass := &domain.BoardingPass{
		ConfirmationNumber: "Q7M2K9",
		PassengerName:      "Ada Lovelace",
		FlightNumber:       "AA123",
		SeatNumber:         "12A",
		Gate:               "B12",
		QRPayload:          "Q7M2K9-ZZZZZZZZZZ",
	}
	mockService.On("CheckIn", mock.Anything, "Q7M2K9").Return(pass, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/bookings/Q7M2K9/checkin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Q7M2K9-ZZZZZZZZZZ")
}

func TestBookingHandler_CheckIn_WindowNotOpen(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	opensAt := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	mockService.On("CheckIn", mock.Anything, "Q7M2K9").
		Return(nil, &domain.CheckInNotOpenError{OpensAt: opensAt}).Once()

	req := httptest.NewRequest(http.MethodPost, "/bookings/Q7M2K9/checkin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "opens_at")
	assert.Contains(t, w.Body.String(), "2026-03-11T09:00:00Z")
}

func TestBookingHandler_CheckIn_AlreadyCheckedIn(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("CheckIn", mock.Anything, "Q7M2K9").
		Return(nil, domain.ErrInvalidState).Once()

	req := httptest.NewRequest(http.MethodPost, "/bookings/Q7M2K9/checkin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_Cancel(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	cancelled := &domain.Booking{
		ConfirmationNumber: "Q7M2K9",
		Status:             domain.BookingStatusCancelled,
		PaymentStatus:      domain.PaymentStatusRefunded,
	}
	mockService.On("CancelBooking", mock.Anything, "Q7M2K9").Return(cancelled, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/bookings/Q7M2K9/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.BookingStatusCancelled), response.Status)
	assert.Equal(t, string(domain.PaymentStatusRefunded), response.PaymentStatus)
}

func TestBookingHandler_Cancel_AlreadyTerminal(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("CancelBooking", mock.Anything, "Q7M2K9").
		Return(nil, domain.ErrInvalidState).Once()

	req := httptest.NewRequest(http.MethodPost, "/bookings/Q7M2K9/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_PassPNG(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	checkedIn := &domain.Booking{ConfirmationNumber: "Q7M2K9", Status: domain.BookingStatusCheckedIn}
	mockService.On("GetBooking", mock.Anything, "Q7M2K9").Return(checkedIn, nil).Once()
	mockService.On("BoardingQRPayload", "Q7M2K9").Return("Q7M2K9-ZZZZZZZZZZ", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/Q7M2K9/pass.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestBookingHandler_PassPNG_UnknownBooking(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	mockService.On("GetBooking", mock.Anything, "NOSUCH").Return(nil, domain.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/NOSUCH/pass.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertNotCalled(t, "BoardingQRPayload")
}

func TestBookingHandler_PassPNG_NotCheckedIn(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	confirmed := &domain.Booking{ConfirmationNumber: "Q7M2K9", Status: domain.BookingStatusConfirmed}
	mockService.On("GetBooking", mock.Anything, "Q7M2K9").Return(confirmed, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/Q7M2K9/pass.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not checked in")
	mockService.AssertNotCalled(t, "BoardingQRPayload")
}

func TestBookingHandler_PassPNG_MismatchedPayload(t *testing.T) {
	mockService := &MockBookingUseCase{}
	router := newBookingRouter(mockService)

	checkedIn := &domain.Booking{ConfirmationNumber: "Q7M2K9", Status: domain.BookingStatusCheckedIn}
	mockService.On("GetBooking", mock.Anything, "Q7M2K9").Return(checkedIn, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/Q7M2K9/pass.png?payload=X3P8R1-ZZZZZZZZZZ", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "BoardingQRPayload")
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/payment"
	"github.com/avelair/skybooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"
)

type BookingHandler struct {
	service  booking.BookingUseCase
	validate *validator.Validate
}

type passengerRequest struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	SeatNumber  string `json:"seat_number"`
	SeatClass   string `json:"seat_class" validate:"required,oneof=ECONOMY PREMIUM_ECONOMY BUSINESS FIRST"`
}

type baggageRequest struct {
	Type     string  `json:"type" validate:"required"`
	WeightKg float64 `json:"weight_kg" validate:"required,gt=0"`
}

type cardRequest struct {
	Number      string `json:"number" validate:"required"`
	Holder      string `json:"holder" validate:"required"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required"`
	CVV         string `json:"cvv" validate:"required"`
}

type createBookingRequest struct {
	FlightNumber string             `json:"flight_number" validate:"required"`
	FlightDate   string             `json:"flight_date" validate:"required,datetime=2006-01-02"`
	Email        string             `json:"email" validate:"required,email"`
	Passengers   []passengerRequest `json:"passengers" validate:"required,min=1,dive"`
	Baggage      []baggageRequest   `json:"baggage" validate:"omitempty,dive"`
	Card         cardRequest        `json:"card" validate:"required"`
}

type bookingResponse struct {
	ConfirmationNumber string               `json:"confirmation_number"`
	Status             string               `json:"status"`
	PaymentStatus      string               `json:"payment_status"`
	TotalCents         int64                `json:"total_cents"`
	FlightNumber       string               `json:"flight_number"`
	FlightDate         string               `json:"flight_date"`
	Passengers         []domain.Passenger   `json:"passengers"`
	Baggage            []domain.BaggageItem `json:"baggage"`
	CreatedAt          string               `json:"created_at"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service, validate: validator.New()}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:confirmation", h.get)
	router.POST("/:confirmation/checkin", h.checkIn)
	router.POST("/:confirmation/cancel", h.cancel)
	router.GET("/:confirmation/pass.png", h.passPNG)
}

func (h *BookingHandler) create(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID header is required"})
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flightDate, err := time.Parse("2006-01-02", req.FlightDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "flight_date must be YYYY-MM-DD"})
		return
	}

	input := booking.CreateBookingInput{
		FlightNumber: req.FlightNumber,
		FlightDate:   flightDate,
		UserID:       userID,
		Email:        req.Email,
		Card: payment.Card{
			Number:      req.Card.Number,
			Holder:      req.Card.Holder,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CVV:         req.Card.CVV,
		},
	}
	for _, p := range req.Passengers {
		var dob *time.Time
		if p.DateOfBirth != "" {
			parsed, err := time.Parse("2006-01-02", p.DateOfBirth)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
				return
			}
			dob = &parsed
		}
		input.Passengers = append(input.Passengers, booking.PassengerInput{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: dob,
			SeatNumber:  p.SeatNumber,
			SeatClass:   domain.SeatClass(p.SeatClass),
		})
	}
	for _, b := range req.Baggage {
		input.Baggage = append(input.Baggage, booking.BaggageInput{Type: b.Type, WeightKg: b.WeightKg})
	}

	created, err := h.service.CreateBooking(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("confirmation"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) checkIn(c *gin.Context) {
	pass, err := h.service.CheckIn(c.Request.Context(), c.Param("confirmation"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pass)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, err := h.service.CancelBooking(c.Request.Context(), c.Param("confirmation"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

// passPNG renders a boarding QR image for a payload issued at check-in.
// Only checked-in bookings have a boarding pass to render.
func (h *BookingHandler) passPNG(c *gin.Context) {
	confirmation := c.Param("confirmation")
	b, err := h.service.GetBooking(c.Request.Context(), confirmation)
	if err != nil {
		writeError(c, err)
		return
	}
	if b.Status != domain.BookingStatusCheckedIn {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking is not checked in"})
		return
	}

	payload := c.Query("payload")
	if payload == "" {
		payload, err = h.service.BoardingQRPayload(confirmation)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	if len(payload) < len(confirmation) || payload[:len(confirmation)] != confirmation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload does not match confirmation number"})
		return
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render qr code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ConfirmationNumber: b.ConfirmationNumber,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		TotalCents:         b.TotalCents,
		FlightNumber:       b.FlightNumber,
		FlightDate:         b.FlightDate.Format("2006-01-02"),
		Passengers:         b.Passengers,
		Baggage:            b.Baggage,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
	}
}

// writeError maps the error taxonomy to status codes with messages safe to
// show an end user.
func writeError(c *gin.Context, err error) {
	var declined *domain.PaymentDeclinedError
	var notOpen *domain.CheckInNotOpenError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &declined):
		c.JSON(http.StatusBadRequest, gin.H{"error": declined.Error()})
	case errors.As(err, &notOpen):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    notOpen.Error(),
			"opens_at": notOpen.OpensAt.Format(time.RFC3339),
		})
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSeatUnavailable),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrFlightDeparted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

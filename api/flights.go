package api

import (
	"net/http"
	"time"

	"github.com/avelair/skybooking/internal/service/booking"
	"github.com/avelair/skybooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	flights  flights.FlightUseCase
	bookings booking.BookingUseCase
}

func NewFlightHandler(flightSvc flights.FlightUseCase, bookingSvc booking.BookingUseCase) *FlightHandler {
	return &FlightHandler{flights: flightSvc, bookings: bookingSvc}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:number", h.get)
	router.GET("/:number/seats", h.seats)
	router.GET("/:number/weather", h.weather)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.flights.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) get(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}
	flight, err := h.flights.GetByNumberAndDate(c.Request.Context(), c.Param("number"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) seats(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}
	sm, err := h.bookings.GetSeatMap(c.Request.Context(), c.Param("number"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sm)
}

// weather reports conditions at the flight's origin airport.
func (h *FlightHandler) weather(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}
	flight, err := h.flights.GetByNumberAndDate(c.Request.Context(), c.Param("number"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	info, err := h.flights.Weather(c.Request.Context(), flight.FromAirport)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func dateParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

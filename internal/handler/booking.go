package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/middleware"
	"sharewheels/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
	log            logrus.FieldLogger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		log:            log,
	}
}

// CreateBookingRequest is the HTTP request body for booking seats.
type CreateBookingRequest struct {
	Ride            string  `json:"ride"`
	Seats           int     `json:"seats"`
	PickupLocation  string  `json:"pickupLocation"`
	DropoffLocation string  `json:"dropoffLocation"`
	Price           float64 `json:"price"`
	SpecialRequests string  `json:"specialRequests,omitempty"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), middleware.CallerID(c), service.CreateBookingRequest{
		RideID:          req.Ride,
		Seats:           req.Seats,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		Price:           req.Price,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusCreated, newBookingResponse(booking))
}

// PassengerBookings handles GET /v1/bookings/passenger
func (h *BookingHandler) PassengerBookings(c *gin.Context) {
	h.listBookings(c, domain.UserRolePassenger)
}

// DriverBookings handles GET /v1/bookings/driver
func (h *BookingHandler) DriverBookings(c *gin.Context) {
	h.listBookings(c, domain.UserRoleDriver)
}

// MyBookings handles GET /v1/bookings, listing bookings for the role carried
// by the caller's token.
func (h *BookingHandler) MyBookings(c *gin.Context) {
	h.listBookings(c, middleware.CallerRole(c))
}

func (h *BookingHandler) listBookings(c *gin.Context, role domain.UserRole) {
	bookings, err := h.bookingService.BookingsForUser(c.Request.Context(), middleware.CallerID(c), role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, newBookingResponse(b))
	}
	respondJSON(c, http.StatusOK, out)
}

// UpdateBookingStatus handles PUT /v1/bookings/:id/status
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookingService.UpdateBookingStatus(c.Request.Context(), middleware.CallerID(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newBookingResponse(booking))
}

// CancelBooking handles DELETE /v1/bookings/:id
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	if err := h.bookingService.CancelBooking(c.Request.Context(), middleware.CallerID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, MessageResponse{Message: "booking cancelled"})
}

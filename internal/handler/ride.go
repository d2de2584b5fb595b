package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/middleware"
	"sharewheels/internal/service"
)

// dateLayout is the format of the date query parameter.
const dateLayout = "2006-01-02"

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService    *service.RideService
	paymentService *service.PaymentService
	log            logrus.FieldLogger
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, paymentService *service.PaymentService, log logrus.FieldLogger) *RideHandler {
	return &RideHandler{
		rideService:    rideService,
		paymentService: paymentService,
		log:            log,
	}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	Vehicle           VehicleBody `json:"vehicle"`
	From              PlaceBody   `json:"from"`
	To                PlaceBody   `json:"to"`
	DepartureTime     time.Time   `json:"departureTime"`
	EstimatedDuration *int        `json:"estimatedDuration,omitempty"`
	AvailableSeats    int         `json:"availableSeats"`
	PricePerSeat      float64     `json:"pricePerSeat"`
	Rules             []string    `json:"rules,omitempty"`
	Notes             string      `json:"notes,omitempty"`
}

// UpdateRideRequest is the HTTP request body for patching a ride.
// Absent fields are left unchanged.
type UpdateRideRequest struct {
	Vehicle           *VehicleBody `json:"vehicle"`
	From              *PlaceBody   `json:"from"`
	To                *PlaceBody   `json:"to"`
	DepartureTime     *time.Time   `json:"departureTime"`
	EstimatedDuration *int         `json:"estimatedDuration"`
	AvailableSeats    *int         `json:"availableSeats"`
	PricePerSeat      *float64     `json:"pricePerSeat"`
	Rules             *[]string    `json:"rules"`
	Notes             *string      `json:"notes"`
}

// StatusRequest is the HTTP request body for status transitions.
type StatusRequest struct {
	Status string `json:"status"`
}

// RideHistoryResponse groups a user's finished rides.
type RideHistoryResponse struct {
	Completed []RideResponse `json:"completed"`
	Cancelled []RideResponse `json:"cancelled"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), middleware.CallerID(c), service.CreateRideRequest{
		Vehicle:           req.Vehicle.domain(),
		From:              req.From.domain(),
		To:                req.To.domain(),
		DepartureTime:     req.DepartureTime,
		EstimatedDuration: req.EstimatedDuration,
		AvailableSeats:    req.AvailableSeats,
		PricePerSeat:      req.PricePerSeat,
		Rules:             req.Rules,
		Notes:             req.Notes,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusCreated, newRideResponse(ride))
}

// ListRides handles GET /v1/rides?from=&to=&date=&seats=&near=lat,lng,radiusKm
func (h *RideHandler) ListRides(c *gin.Context) {
	req := service.ListRidesRequest{
		FromCity: strings.TrimSpace(c.Query("from")),
		ToCity:   strings.TrimSpace(c.Query("to")),
	}

	if date := c.Query("date"); date != "" {
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "date must be YYYY-MM-DD"})
			return
		}
		req.Date = &day
	}

	if seats := c.Query("seats"); seats != "" {
		n, err := strconv.Atoi(seats)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "seats must be an integer"})
			return
		}
		req.MinSeats = n
	}

	if near := c.Query("near"); near != "" {
		q, err := parseNear(near)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "near must be lat,lng,radiusKm"})
			return
		}
		req.Near = q
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponses(rides))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// UpdateRide handles PUT /v1/rides/:id
func (h *RideHandler) UpdateRide(c *gin.Context) {
	var req UpdateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	patch := service.RidePatch{
		DepartureTime:     req.DepartureTime,
		EstimatedDuration: req.EstimatedDuration,
		AvailableSeats:    req.AvailableSeats,
		PricePerSeat:      req.PricePerSeat,
		Rules:             req.Rules,
		Notes:             req.Notes,
	}
	if req.Vehicle != nil {
		v := req.Vehicle.domain()
		patch.Vehicle = &v
	}
	if req.From != nil {
		p := req.From.domain()
		patch.From = &p
	}
	if req.To != nil {
		p := req.To.domain()
		patch.To = &p
	}

	ride, err := h.rideService.UpdateRide(c.Request.Context(), middleware.CallerID(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// DeleteRide handles DELETE /v1/rides/:id
func (h *RideHandler) DeleteRide(c *gin.Context) {
	if err := h.rideService.DeleteRide(c.Request.Context(), middleware.CallerID(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, MessageResponse{Message: "ride deleted"})
}

// MyRides handles GET /v1/rides/mine
func (h *RideHandler) MyRides(c *gin.Context) {
	rides, err := h.rideService.UserRides(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponses(rides))
}

// RideHistory handles GET /v1/rides/history/:userId
func (h *RideHandler) RideHistory(c *gin.Context) {
	history, err := h.rideService.RideHistory(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, RideHistoryResponse{
		Completed: newRideResponses(history.Completed),
		Cancelled: newRideResponses(history.Cancelled),
	})
}

// UpdateRideStatus handles PUT /v1/rides/:id/status
func (h *RideHandler) UpdateRideStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.UpdateRideStatus(c.Request.Context(), middleware.CallerID(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// UpdatePassengerStatus handles PUT /v1/rides/:id/passengers/:entryId/status
func (h *RideHandler) UpdatePassengerStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	entry, err := h.rideService.UpdatePassengerStatus(c.Request.Context(), middleware.CallerID(c), c.Param("id"), c.Param("entryId"), req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, PassengerResponse{
		ID:            entry.ID,
		User:          entry.UserID,
		Seats:         entry.Seats,
		Status:        string(entry.Status),
		PaymentStatus: string(entry.PaymentStatus),
		PickupLocation: PickupBody{
			Address:     entry.Pickup.Address,
			Coordinates: fromCoordinates(entry.Pickup.Coordinates),
		},
	})
}

// PayForRide handles PUT /v1/rides/:id/pay
func (h *RideHandler) PayForRide(c *gin.Context) {
	receipt, err := h.paymentService.PayForRide(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondJSON(c, http.StatusOK, newReceiptResponse(receipt))
}

func parseNear(raw string) (*service.NearQuery, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return nil, strconv.ErrSyntax
	}

	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	return &service.NearQuery{Lat: vals[0], Lng: vals[1], RadiusKm: vals[2]}, nil
}

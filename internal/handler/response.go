package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/repository"
	"sharewheels/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is returned by operations without a resource body.
type MessageResponse struct {
	Message string `json:"message"`
}

// internalErrorMessage hides store and infrastructure failures from clients.
const internalErrorMessage = "internal server error"

// respondError sends an error response with the appropriate HTTP status code.
// Server errors are logged and replaced by a generic message.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}).Error("request failed")
		c.JSON(code, ErrorResponse{Error: internalErrorMessage})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrPassengerNotConfirmed):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidSeats),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRideStatus),
		errors.Is(err, service.ErrInvalidBookingStatus),
		errors.Is(err, service.ErrInvalidPassengerStatus),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrPriceMismatch):
		return http.StatusBadRequest

	// Unauthenticated
	case errors.Is(err, service.ErrMissingCaller):
		return http.StatusUnauthorized

	// Forbidden
	case errors.Is(err, service.ErrNotRideDriver),
		errors.Is(err, service.ErrNotBookingDriver),
		errors.Is(err, service.ErrNotBookingPassenger),
		errors.Is(err, service.ErrNotRideParticipant):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrRideHasConfirmedBookings),
		errors.Is(err, service.ErrInsufficientSeats),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrRideBusy),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

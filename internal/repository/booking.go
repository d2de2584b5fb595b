package repository

import (
	"context"

	"sharewheels/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// FindByPassenger retrieves the passenger's bookings, newest first.
	FindByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error)

	// FindByDriver retrieves bookings on the driver's rides, newest first.
	FindByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error)

	// CountByRideAndStatus counts bookings of a ride in any of the given statuses.
	CountByRideAndStatus(ctx context.Context, rideID string, statuses ...domain.BookingStatus) (int, error)

	// Update updates an existing booking.
	Update(ctx context.Context, booking *domain.Booking) error

	// Delete removes a booking.
	Delete(ctx context.Context, id string) error

	// DeleteByRideAndStatus removes the ride's bookings in the given status.
	DeleteByRideAndStatus(ctx context.Context, rideID string, status domain.BookingStatus) (int64, error)
}

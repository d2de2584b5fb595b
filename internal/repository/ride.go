package repository

import (
	"context"
	"time"

	"sharewheels/internal/domain"
)

// RideFilter narrows a ride search. Zero values are ignored.
type RideFilter struct {
	FromCity string
	ToCity   string
	Date     *time.Time // matches departures within the same UTC day
	MinSeats int
	IDs      []string // restricts the search to these rides (nil = no restriction)
	Status   domain.RideStatus
}

// DayBounds returns the [start, end) UTC day bucket of the filter's date.
func (f RideFilter) DayBounds() (time.Time, time.Time) {
	d := f.Date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// Find retrieves rides matching the filter ordered by departure time.
	Find(ctx context.Context, filter RideFilter) ([]*domain.Ride, error)

	// FindByUser retrieves rides the user drives or has a passenger entry on.
	FindByUser(ctx context.Context, userID string) ([]*domain.Ride, error)

	// FindHistory retrieves the user's completed and cancelled rides.
	FindHistory(ctx context.Context, userID string) (completed, cancelled []*domain.Ride, err error)

	// Update replaces an existing ride document.
	Update(ctx context.Context, ride *domain.Ride) error

	// Delete removes a ride.
	Delete(ctx context.Context, id string) error
}

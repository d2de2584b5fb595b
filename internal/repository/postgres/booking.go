package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"sharewheels/internal/domain"
	"sharewheels/internal/repository"
)

const bookingColumns = `id, ride_id, passenger_id, driver_id, seats, pickup_location, dropoff_location,
	price, special_requests, status, created_at, updated_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.RideID,
		booking.PassengerID,
		booking.DriverID,
		booking.Seats,
		booking.PickupLocation,
		booking.DropoffLocation,
		booking.Price,
		booking.SpecialRequests,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

// FindByPassenger retrieves the passenger's bookings, newest first.
func (r *BookingRepository) FindByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE passenger_id = $1 ORDER BY created_at DESC`
	return r.queryBookings(ctx, query, passengerID)
}

// FindByDriver retrieves bookings on the driver's rides, newest first.
func (r *BookingRepository) FindByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE driver_id = $1 ORDER BY created_at DESC`
	return r.queryBookings(ctx, query, driverID)
}

// CountByRideAndStatus counts bookings of a ride in any of the given statuses.
func (r *BookingRepository) CountByRideAndStatus(ctx context.Context, rideID string, statuses ...domain.BookingStatus) (int, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE ride_id = $1 AND status = ANY($2)`,
		rideID, pq.Array(names),
	).Scan(&count)
	return count, err
}

// Update updates an existing booking.
func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	query := `
		UPDATE bookings
		SET seats = $1, pickup_location = $2, dropoff_location = $3, price = $4,
		    special_requests = $5, status = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		booking.Seats,
		booking.PickupLocation,
		booking.DropoffLocation,
		booking.Price,
		booking.SpecialRequests,
		booking.Status,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes a booking.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// DeleteByRideAndStatus removes the ride's bookings in the given status.
func (r *BookingRepository) DeleteByRideAndStatus(ctx context.Context, rideID string, status domain.BookingStatus) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE ride_id = $1 AND status = $2`, rideID, status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row scanner) (*domain.Booking, error) {
	var booking domain.Booking
	err := row.Scan(
		&booking.ID,
		&booking.RideID,
		&booking.PassengerID,
		&booking.DriverID,
		&booking.Seats,
		&booking.PickupLocation,
		&booking.DropoffLocation,
		&booking.Price,
		&booking.SpecialRequests,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"sharewheels/internal/domain"
	"sharewheels/internal/repository"
)

const rideColumns = `id, driver_id, vehicle_model, vehicle_color, license_plate,
	from_city, from_address, from_lat, from_lng,
	to_city, to_address, to_lat, to_lng,
	departure_time, estimated_duration, total_seats, available_seats, price_per_seat,
	status, passengers, rules, notes, created_at, updated_at`

// passengerRecord is the JSONB shape of a passenger entry.
type passengerRecord struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	Seats         int      `json:"seats"`
	Status        string   `json:"status"`
	PaymentStatus string   `json:"payment_status"`
	PickupAddress string   `json:"pickup_address,omitempty"`
	PickupLat     *float64 `json:"pickup_lat,omitempty"`
	PickupLng     *float64 `json:"pickup_lng,omitempty"`
}

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
// Passenger entries are embedded in the ride row as a JSONB array.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	passengers, err := encodePassengers(ride.Roster())
	if err != nil {
		return err
	}

	query := `INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	fromLat, fromLng := nullCoordinates(ride.From.Coordinates)
	toLat, toLng := nullCoordinates(ride.To.Coordinates)

	_, err = r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.Vehicle.Model,
		ride.Vehicle.Color,
		ride.Vehicle.LicensePlate,
		ride.From.City,
		ride.From.Address,
		fromLat,
		fromLng,
		ride.To.City,
		ride.To.Address,
		toLat,
		toLng,
		ride.DepartureTime,
		nullInt(ride.EstimatedDuration),
		ride.TotalSeats,
		ride.AvailableSeats,
		ride.PricePerSeat,
		ride.Status,
		passengers,
		pq.StringArray(ride.Rules),
		ride.Notes,
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// Find retrieves rides matching the filter ordered by departure time.
func (r *RideRepository) Find(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.FromCity != "" {
		conds = append(conds, "from_city = "+arg(filter.FromCity))
	}
	if filter.ToCity != "" {
		conds = append(conds, "to_city = "+arg(filter.ToCity))
	}
	if filter.Date != nil {
		start, end := filter.DayBounds()
		conds = append(conds, "departure_time >= "+arg(start), "departure_time < "+arg(end))
	}
	if filter.MinSeats > 0 {
		conds = append(conds, "available_seats >= "+arg(filter.MinSeats))
	}
	if filter.IDs != nil {
		conds = append(conds, "id = ANY("+arg(pq.Array(filter.IDs))+")")
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}

	query := `SELECT ` + rideColumns + ` FROM rides`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY departure_time ASC"

	return r.queryRides(ctx, query, args...)
}

// FindByUser retrieves rides the user drives or has a passenger entry on.
func (r *RideRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE driver_id = $1
		   OR EXISTS (SELECT 1 FROM jsonb_array_elements(passengers) p WHERE p->>'user_id' = $1)
		ORDER BY departure_time ASC`

	return r.queryRides(ctx, query, userID)
}

// FindHistory retrieves the user's completed and cancelled rides.
func (r *RideRepository) FindHistory(ctx context.Context, userID string) ([]*domain.Ride, []*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE status = $2
		  AND (driver_id = $1
		   OR EXISTS (SELECT 1 FROM jsonb_array_elements(passengers) p
		              WHERE p->>'user_id' = $1 AND p->>'status' = ANY($3)))
		ORDER BY departure_time DESC`

	completed, err := r.queryRides(ctx, query, userID, domain.RideStatusCompleted,
		pq.Array([]string{string(domain.PassengerStatusConfirmed)}))
	if err != nil {
		return nil, nil, err
	}

	cancelled, err := r.queryRides(ctx, query, userID, domain.RideStatusCancelled,
		pq.Array([]string{string(domain.PassengerStatusConfirmed), string(domain.PassengerStatusCancelled)}))
	if err != nil {
		return nil, nil, err
	}

	return completed, cancelled, nil
}

// Update replaces an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	passengers, err := encodePassengers(ride.Roster())
	if err != nil {
		return err
	}

	query := `
		UPDATE rides
		SET vehicle_model = $1, vehicle_color = $2, license_plate = $3,
		    from_city = $4, from_address = $5, from_lat = $6, from_lng = $7,
		    to_city = $8, to_address = $9, to_lat = $10, to_lng = $11,
		    departure_time = $12, estimated_duration = $13, total_seats = $14, available_seats = $15,
		    price_per_seat = $16, status = $17, passengers = $18, rules = $19, notes = $20, updated_at = $21
		WHERE id = $22
	`

	fromLat, fromLng := nullCoordinates(ride.From.Coordinates)
	toLat, toLng := nullCoordinates(ride.To.Coordinates)

	result, err := r.q.ExecContext(ctx, query,
		ride.Vehicle.Model,
		ride.Vehicle.Color,
		ride.Vehicle.LicensePlate,
		ride.From.City,
		ride.From.Address,
		fromLat,
		fromLng,
		ride.To.City,
		ride.To.Address,
		toLat,
		toLng,
		ride.DepartureTime,
		nullInt(ride.EstimatedDuration),
		ride.TotalSeats,
		ride.AvailableSeats,
		ride.PricePerSeat,
		ride.Status,
		passengers,
		pq.StringArray(ride.Rules),
		ride.Notes,
		ride.UpdatedAt,
		ride.ID,
	)
	if err != nil {
		return err
	}

	return expectAffected(result)
}

// Delete removes a ride.
func (r *RideRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM rides WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *RideRepository) queryRides(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rides := make([]*domain.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRide(row scanner) (*domain.Ride, error) {
	var (
		ride              domain.Ride
		fromLat, fromLng  sql.NullFloat64
		toLat, toLng      sql.NullFloat64
		estimatedDuration sql.NullInt64
		passengers        []byte
		rules             pq.StringArray
	)

	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.Vehicle.Model,
		&ride.Vehicle.Color,
		&ride.Vehicle.LicensePlate,
		&ride.From.City,
		&ride.From.Address,
		&fromLat,
		&fromLng,
		&ride.To.City,
		&ride.To.Address,
		&toLat,
		&toLng,
		&ride.DepartureTime,
		&estimatedDuration,
		&ride.TotalSeats,
		&ride.AvailableSeats,
		&ride.PricePerSeat,
		&ride.Status,
		&passengers,
		&rules,
		&ride.Notes,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.From.Coordinates = coordinatesFrom(fromLat, fromLng)
	ride.To.Coordinates = coordinatesFrom(toLat, toLng)
	if estimatedDuration.Valid {
		d := int(estimatedDuration.Int64)
		ride.EstimatedDuration = &d
	}
	ride.Rules = []string(rules)

	roster, err := decodePassengers(passengers)
	if err != nil {
		return nil, fmt.Errorf("decode passengers of ride %s: %w", ride.ID, err)
	}
	ride.Passengers = roster

	return &ride, nil
}

func encodePassengers(p *domain.Passengers) ([]byte, error) {
	entries := p.All()
	records := make([]passengerRecord, 0, len(entries))
	for _, e := range entries {
		rec := passengerRecord{
			ID:            e.ID,
			UserID:        e.UserID,
			Seats:         e.Seats,
			Status:        string(e.Status),
			PaymentStatus: string(e.PaymentStatus),
			PickupAddress: e.Pickup.Address,
		}
		if c := e.Pickup.Coordinates; c != nil {
			lat, lng := c.Lat, c.Lng
			rec.PickupLat, rec.PickupLng = &lat, &lng
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

func decodePassengers(data []byte) (*domain.Passengers, error) {
	if len(data) == 0 {
		return domain.NewPassengers(nil), nil
	}

	var records []passengerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	entries := make([]domain.PassengerEntry, 0, len(records))
	for _, rec := range records {
		e := domain.PassengerEntry{
			ID:            rec.ID,
			UserID:        rec.UserID,
			Seats:         rec.Seats,
			Status:        domain.PassengerStatus(rec.Status),
			PaymentStatus: domain.PaymentStatus(rec.PaymentStatus),
			Pickup:        domain.PickupLocation{Address: rec.PickupAddress},
		}
		if rec.PickupLat != nil && rec.PickupLng != nil {
			e.Pickup.Coordinates = &domain.Coordinates{Lat: *rec.PickupLat, Lng: *rec.PickupLng}
		}
		entries = append(entries, e)
	}
	return domain.NewPassengers(entries), nil
}

func nullCoordinates(c *domain.Coordinates) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}

func coordinatesFrom(lat, lng sql.NullFloat64) *domain.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)

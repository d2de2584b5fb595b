package postgres

import (
	"context"
	"database/sql"
)

// schema creates the tables used by the repositories. Statements are
// idempotent so it is safe to run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		email          TEXT NOT NULL UNIQUE,
		phone          TEXT,
		role           TEXT NOT NULL,
		rating         DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_rides    INTEGER NOT NULL DEFAULT 0,
		total_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rides (
		id                 TEXT PRIMARY KEY,
		driver_id          TEXT NOT NULL,
		vehicle_model      TEXT NOT NULL,
		vehicle_color      TEXT NOT NULL DEFAULT '',
		license_plate      TEXT NOT NULL,
		from_city          TEXT NOT NULL,
		from_address       TEXT NOT NULL,
		from_lat           DOUBLE PRECISION,
		from_lng           DOUBLE PRECISION,
		to_city            TEXT NOT NULL,
		to_address         TEXT NOT NULL,
		to_lat             DOUBLE PRECISION,
		to_lng             DOUBLE PRECISION,
		departure_time     TIMESTAMPTZ NOT NULL,
		estimated_duration INTEGER,
		total_seats        INTEGER NOT NULL,
		available_seats    INTEGER NOT NULL,
		price_per_seat     DOUBLE PRECISION NOT NULL,
		status             TEXT NOT NULL DEFAULT 'scheduled',
		passengers         JSONB NOT NULL DEFAULT '[]',
		rules              TEXT[] NOT NULL DEFAULT '{}',
		notes              TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS rides_search_idx ON rides (from_city, to_city, departure_time)`,
	`CREATE INDEX IF NOT EXISTS rides_driver_idx ON rides (driver_id)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id               TEXT PRIMARY KEY,
		ride_id          TEXT NOT NULL,
		passenger_id     TEXT NOT NULL,
		driver_id        TEXT NOT NULL,
		seats            INTEGER NOT NULL CHECK (seats >= 1),
		pickup_location  TEXT NOT NULL,
		dropoff_location TEXT NOT NULL,
		price            DOUBLE PRECISION NOT NULL,
		special_requests TEXT NOT NULL DEFAULT 'none',
		status           TEXT NOT NULL DEFAULT 'pending',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_ride_idx ON bookings (ride_id, status)`,
	`CREATE INDEX IF NOT EXISTS bookings_passenger_idx ON bookings (passenger_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bookings_driver_idx ON bookings (driver_id, created_at DESC)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sharewheels/internal/domain"
)

// DefaultRideCacheTTL is used when no TTL is configured.
const DefaultRideCacheTTL = 30 * time.Second

// invalidationHold is how long an invalidated ride refuses new fills. A
// reader that loaded the ride before a write committed cannot put its copy
// back while the hold lasts.
const invalidationHold = 5 * time.Second

const (
	rideCachePrefix = "cache:ride:"
	rideTombstone   = "invalidated"
)

// cacheClient is the subset of *redis.Client the ride cache uses.
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// CacheStore handles ride caching in Redis.
type CacheStore struct {
	client cacheClient
	ttl    time.Duration
	hold   time.Duration
}

// NewCacheStore creates a new CacheStore. A non-positive ttl falls back to
// DefaultRideCacheTTL.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	return newCacheStore(client, ttl)
}

func newCacheStore(client cacheClient, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = DefaultRideCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl, hold: invalidationHold}
}

type cachedCoordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type cachedPlace struct {
	City        string             `json:"city"`
	Address     string             `json:"address"`
	Coordinates *cachedCoordinates `json:"coordinates,omitempty"`
}

type cachedPassenger struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Seats         int                `json:"seats"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"payment_status"`
	PickupAddress string             `json:"pickup_address,omitempty"`
	PickupCoords  *cachedCoordinates `json:"pickup_coordinates,omitempty"`
}

// CachedRide represents a cached ride entity.
type CachedRide struct {
	ID                string            `json:"id"`
	DriverID          string            `json:"driver_id"`
	VehicleModel      string            `json:"vehicle_model"`
	VehicleColor      string            `json:"vehicle_color"`
	LicensePlate      string            `json:"license_plate"`
	From              cachedPlace       `json:"from"`
	To                cachedPlace       `json:"to"`
	DepartureTime     time.Time         `json:"departure_time"`
	EstimatedDuration *int              `json:"estimated_duration,omitempty"`
	TotalSeats        int               `json:"total_seats"`
	AvailableSeats    int               `json:"available_seats"`
	PricePerSeat      float64           `json:"price_per_seat"`
	Status            string            `json:"status"`
	Passengers        []cachedPassenger `json:"passengers"`
	Rules             []string          `json:"rules"`
	Notes             string            `json:"notes"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// GetRide retrieves a ride from cache. A miss, including a held
// invalidation, returns nil, nil.
func (s *CacheStore) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	data, err := s.client.Get(ctx, rideCachePrefix+rideID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if string(data) == rideTombstone {
		return nil, nil
	}

	var cached CachedRide
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.toDomain(), nil
}

// SetRide fills the cache with a ride loaded from the store. It writes only
// when the key is empty, so a fill never overwrites a held invalidation.
func (s *CacheStore) SetRide(ctx context.Context, ride *domain.Ride) error {
	data, err := json.Marshal(newCachedRide(ride))
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, rideCachePrefix+ride.ID, data, s.ttl).Err()
}

// InvalidateRide replaces the cached ride with a tombstone that lives for the
// invalidation hold.
func (s *CacheStore) InvalidateRide(ctx context.Context, rideID string) error {
	return s.client.Set(ctx, rideCachePrefix+rideID, rideTombstone, s.hold).Err()
}

func newCachedRide(r *domain.Ride) CachedRide {
	entries := r.Clone().Roster().All()
	passengers := make([]cachedPassenger, 0, len(entries))
	for _, e := range entries {
		passengers = append(passengers, cachedPassenger{
			ID:            e.ID,
			UserID:        e.UserID,
			Seats:         e.Seats,
			Status:        string(e.Status),
			PaymentStatus: string(e.PaymentStatus),
			PickupAddress: e.Pickup.Address,
			PickupCoords:  toCachedCoordinates(e.Pickup.Coordinates),
		})
	}

	return CachedRide{
		ID:                r.ID,
		DriverID:          r.DriverID,
		VehicleModel:      r.Vehicle.Model,
		VehicleColor:      r.Vehicle.Color,
		LicensePlate:      r.Vehicle.LicensePlate,
		From:              cachedPlace{City: r.From.City, Address: r.From.Address, Coordinates: toCachedCoordinates(r.From.Coordinates)},
		To:                cachedPlace{City: r.To.City, Address: r.To.Address, Coordinates: toCachedCoordinates(r.To.Coordinates)},
		DepartureTime:     r.DepartureTime,
		EstimatedDuration: r.EstimatedDuration,
		TotalSeats:        r.TotalSeats,
		AvailableSeats:    r.AvailableSeats,
		PricePerSeat:      r.PricePerSeat,
		Status:            string(r.Status),
		Passengers:        passengers,
		Rules:             r.Rules,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (c CachedRide) toDomain() *domain.Ride {
	entries := make([]domain.PassengerEntry, 0, len(c.Passengers))
	for _, p := range c.Passengers {
		entries = append(entries, domain.PassengerEntry{
			ID:            p.ID,
			UserID:        p.UserID,
			Seats:         p.Seats,
			Status:        domain.PassengerStatus(p.Status),
			PaymentStatus: domain.PaymentStatus(p.PaymentStatus),
			Pickup:        domain.PickupLocation{Address: p.PickupAddress, Coordinates: p.PickupCoords.toDomain()},
		})
	}

	return &domain.Ride{
		ID:       c.ID,
		DriverID: c.DriverID,
		Vehicle: domain.VehicleSnapshot{
			Model:        c.VehicleModel,
			Color:        c.VehicleColor,
			LicensePlate: c.LicensePlate,
		},
		From:              domain.Place{City: c.From.City, Address: c.From.Address, Coordinates: c.From.Coordinates.toDomain()},
		To:                domain.Place{City: c.To.City, Address: c.To.Address, Coordinates: c.To.Coordinates.toDomain()},
		DepartureTime:     c.DepartureTime,
		EstimatedDuration: c.EstimatedDuration,
		TotalSeats:        c.TotalSeats,
		AvailableSeats:    c.AvailableSeats,
		PricePerSeat:      c.PricePerSeat,
		Status:            domain.RideStatus(c.Status),
		Passengers:        domain.NewPassengers(entries),
		Rules:             c.Rules,
		Notes:             c.Notes,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func toCachedCoordinates(c *domain.Coordinates) *cachedCoordinates {
	if c == nil {
		return nil
	}
	return &cachedCoordinates{Lat: c.Lat, Lng: c.Lng}
}

func (c *cachedCoordinates) toDomain() *domain.Coordinates {
	if c == nil {
		return nil
	}
	return &domain.Coordinates{Lat: c.Lat, Lng: c.Lng}
}

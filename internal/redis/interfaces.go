package redis

import (
	"context"
	"time"

	"sharewheels/internal/domain"
)

// GeoIndexInterface defines the interface for ride origin geo operations.
type GeoIndexInterface interface {
	AddRide(ctx context.Context, rideID string, lat, lng float64) error
	FindNearbyRides(ctx context.Context, lat, lng, radiusKm float64) ([]RideLocation, error)
	RemoveRide(ctx context.Context, rideID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// RideCacheInterface defines the interface for ride caching. SetRide is a
// fill: it must not overwrite a ride invalidated moments ago.
type RideCacheInterface interface {
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	SetRide(ctx context.Context, ride *domain.Ride) error
	InvalidateRide(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ GeoIndexInterface  = (*GeoIndex)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
	_ RideCacheInterface = (*CacheStore)(nil)
)

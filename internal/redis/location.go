package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const rideOriginKey = "rides:origins"

// RideLocation represents a ride's departure point.
type RideLocation struct {
	RideID     string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// GeoIndex indexes ride origins in a Redis geo set.
type GeoIndex struct {
	client *redis.Client
}

// NewGeoIndex creates a new GeoIndex.
func NewGeoIndex(client *redis.Client) *GeoIndex {
	return &GeoIndex{client: client}
}

// AddRide stores a ride's origin using GEOADD.
func (g *GeoIndex) AddRide(ctx context.Context, rideID string, lat, lng float64) error {
	return g.client.GeoAdd(ctx, rideOriginKey, &redis.GeoLocation{
		Name:      rideID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyRides returns rides departing within the given radius (in kilometers),
// nearest first.
func (g *GeoIndex) FindNearbyRides(ctx context.Context, lat, lng, radiusKm float64) ([]RideLocation, error) {
	results, err := g.client.GeoRadius(ctx, rideOriginKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]RideLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, RideLocation{
			RideID:     r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}

	return locations, nil
}

// RemoveRide removes a ride from the geo index.
func (g *GeoIndex) RemoveRide(ctx context.Context, rideID string) error {
	return g.client.ZRem(ctx, rideOriginKey, rideID).Err()
}

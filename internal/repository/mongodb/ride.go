package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sharewheels/internal/domain"
	"sharewheels/internal/repository"
)

// RideRepository is a MongoDB implementation of repository.RideRepository.
// Passenger entries are stored embedded in the ride document.
type RideRepository struct {
	collection *mongo.Collection
}

// NewRideRepository creates a new MongoDB ride repository.
func NewRideRepository(db *mongo.Database) *RideRepository {
	return &RideRepository{collection: db.Collection("rides")}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	if _, err := r.collection.InsertOne(ctx, toRideDoc(ride)); err != nil {
		return fmt.Errorf("failed to create ride: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	var doc rideDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return doc.domain(), nil
}

// Find retrieves rides matching the filter ordered by departure time.
func (r *RideRepository) Find(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	query := bson.M{}
	if filter.FromCity != "" {
		query["from.city"] = filter.FromCity
	}
	if filter.ToCity != "" {
		query["to.city"] = filter.ToCity
	}
	if filter.Date != nil {
		start, end := filter.DayBounds()
		query["departure_time"] = bson.M{"$gte": start, "$lt": end}
	}
	if filter.MinSeats > 0 {
		query["available_seats"] = bson.M{"$gte": filter.MinSeats}
	}
	if filter.IDs != nil {
		query["_id"] = bson.M{"$in": filter.IDs}
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "departure_time", Value: 1}}))
}

// FindByUser retrieves rides the user drives or has a passenger entry on.
func (r *RideRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Ride, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"driver": userID},
		bson.M{"passengers.user": userID},
	}}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "departure_time", Value: 1}}))
}

// FindHistory retrieves the user's completed and cancelled rides.
func (r *RideRepository) FindHistory(ctx context.Context, userID string) ([]*domain.Ride, []*domain.Ride, error) {
	sort := options.Find().SetSort(bson.D{{Key: "departure_time", Value: -1}})

	completed, err := r.find(ctx, historyQuery(userID, domain.RideStatusCompleted,
		domain.PassengerStatusConfirmed), sort)
	if err != nil {
		return nil, nil, err
	}

	cancelled, err := r.find(ctx, historyQuery(userID, domain.RideStatusCancelled,
		domain.PassengerStatusConfirmed, domain.PassengerStatusCancelled), sort)
	if err != nil {
		return nil, nil, err
	}

	return completed, cancelled, nil
}

func historyQuery(userID string, status domain.RideStatus, passengerStatuses ...domain.PassengerStatus) bson.M {
	names := make(bson.A, len(passengerStatuses))
	for i, s := range passengerStatuses {
		names[i] = string(s)
	}
	return bson.M{
		"status": string(status),
		"$or": bson.A{
			bson.M{"driver": userID},
			bson.M{"passengers": bson.M{"$elemMatch": bson.M{
				"user":   userID,
				"status": bson.M{"$in": names},
			}}},
		},
	}
}

// Update replaces an existing ride document.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": ride.ID}, toRideDoc(ride))
	if err != nil {
		return fmt.Errorf("failed to update ride: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a ride.
func (r *RideRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete ride: %w", err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RideRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.Ride, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	rides := make([]*domain.Ride, 0)
	for cursor.Next(ctx) {
		var doc rideDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, doc.domain())
	}
	return rides, cursor.Err()
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)

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

// BookingRepository is a MongoDB implementation of repository.BookingRepository.
type BookingRepository struct {
	collection *mongo.Collection
}

// NewBookingRepository creates a new MongoDB booking repository.
func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{collection: db.Collection("bookings")}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if _, err := r.collection.InsertOne(ctx, toBookingDoc(booking)); err != nil {
		return fmt.Errorf("failed to create booking: %w", mapWriteError(err))
	}
	return nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var doc bookingDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return doc.domain(), nil
}

// FindByPassenger retrieves the passenger's bookings, newest first.
func (r *BookingRepository) FindByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	return r.find(ctx, bson.M{"passenger": passengerID})
}

// FindByDriver retrieves bookings on the driver's rides, newest first.
func (r *BookingRepository) FindByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return r.find(ctx, bson.M{"driver": driverID})
}

// CountByRideAndStatus counts bookings of a ride in any of the given statuses.
func (r *BookingRepository) CountByRideAndStatus(ctx context.Context, rideID string, statuses ...domain.BookingStatus) (int, error) {
	names := make(bson.A, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"ride":   rideID,
		"status": bson.M{"$in": names},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return int(count), nil
}

// Update updates an existing booking.
func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": booking.ID},
		bson.M{"$set": bson.M{
			"seats":            booking.Seats,
			"pickup_location":  booking.PickupLocation,
			"dropoff_location": booking.DropoffLocation,
			"price":            booking.Price,
			"special_requests": booking.SpecialRequests,
			"status":           string(booking.Status),
			"updated_at":       booking.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a booking.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByRideAndStatus removes the ride's bookings in the given status.
func (r *BookingRepository) DeleteByRideAndStatus(ctx context.Context, rideID string, status domain.BookingStatus) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"ride": rideID, "status": string(status)})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookings: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *BookingRepository) find(ctx context.Context, query bson.M) ([]*domain.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	bookings := make([]*domain.Booking, 0, len(docs))
	for _, doc := range docs {
		bookings = append(bookings, doc.domain())
	}
	return bookings, nil
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)

package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sharewheels/internal/repository"
)

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// EnsureIndexes creates the indexes the repositories query by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"rides": {
			{Keys: bson.D{{Key: "from.city", Value: 1}, {Key: "to.city", Value: 1}, {Key: "departure_time", Value: 1}}},
			{Keys: bson.D{{Key: "driver", Value: 1}}},
			{Keys: bson.D{{Key: "passengers.user", Value: 1}}},
		},
		"bookings": {
			{Keys: bson.D{{Key: "ride", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "passenger", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "driver", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}

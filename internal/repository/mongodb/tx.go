package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"sharewheels/internal/repository"
)

// TxManager runs units of work inside a MongoDB session transaction.
// Transactions require a replica set; with transactions disabled fn runs
// directly against the collections.
type TxManager struct {
	db           *mongo.Database
	transactions bool
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *mongo.Database, transactions bool) *TxManager {
	return &TxManager{db: db, transactions: transactions}
}

// WithinTx runs fn with repositories bound to a session transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.Stores) error) error {
	stores := repository.Stores{
		Rides:    NewRideRepository(m.db),
		Bookings: NewBookingRepository(m.db),
		Users:    NewUserRepository(m.db),
	}

	if !m.transactions {
		return fn(ctx, stores)
	}

	session, err := m.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, stores)
	})
	return err
}

// Ensure TxManager implements repository.TxManager.
var _ repository.TxManager = (*TxManager)(nil)

package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"sharewheels/internal/config"
)

// NewMongoDatabase connects to MongoDB and returns the configured database.
// If nrApp is provided, commands are recorded as datastore segments.
func NewMongoDatabase(ctx context.Context, cfg config.MongoConfig, nrApp *newrelic.Application) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	if nrApp != nil {
		clientOptions.SetMonitor(newNRCommandMonitor())
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client.Database(cfg.Database), nil
}

// nrCommandMonitor ends a datastore segment for every command started inside
// a New Relic transaction.
type nrCommandMonitor struct {
	segments sync.Map // request id -> *newrelic.DatastoreSegment
}

func newNRCommandMonitor() *event.CommandMonitor {
	m := &nrCommandMonitor{}
	return &event.CommandMonitor{
		Started:   m.started,
		Succeeded: func(_ context.Context, e *event.CommandSucceededEvent) { m.end(e.RequestID) },
		Failed:    func(_ context.Context, e *event.CommandFailedEvent) { m.end(e.RequestID) },
	}
}

func (m *nrCommandMonitor) started(ctx context.Context, e *event.CommandStartedEvent) {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return
	}

	collection, _ := e.Command.Lookup(e.CommandName).StringValueOK()
	m.segments.Store(e.RequestID, &newrelic.DatastoreSegment{
		StartTime:    txn.StartSegmentNow(),
		Product:      newrelic.DatastoreMongoDB,
		Operation:    e.CommandName,
		Collection:   collection,
		DatabaseName: e.DatabaseName,
	})
}

func (m *nrCommandMonitor) end(requestID int64) {
	if seg, ok := m.segments.LoadAndDelete(requestID); ok {
		seg.(*newrelic.DatastoreSegment).End()
	}
}

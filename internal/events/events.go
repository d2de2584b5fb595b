// Package events publishes booking and ride domain events.
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	BookingCreated         = "booking.created"
	BookingAccepted        = "booking.accepted"
	BookingRejected        = "booking.rejected"
	BookingCancelled       = "booking.cancelled"
	RideStatusChanged      = "ride.status_changed"
	RideDeleted            = "ride.deleted"
	PassengerStatusChanged = "ride.passenger_status_changed"
	RidePaymentCompleted   = "ride.payment_completed"
)

// Event is the envelope published for every domain change.
type Event struct {
	Type       string         `json:"type"`
	RideID     string         `json:"ride_id,omitempty"`
	BookingID  string         `json:"booking_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

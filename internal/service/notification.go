package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/events"
	"sharewheels/internal/logger"
)

// NotificationService announces committed booking and ride changes.
// Delivery is best effort: a failed publish is logged and never fails the
// operation that triggered it.
type NotificationService struct {
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService. A nil publisher
// only logs.
func NewNotificationService(publisher events.Publisher, log logrus.FieldLogger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &NotificationService{publisher: publisher, log: log, now: time.Now}
}

// NotifyBookingCreated tells the driver about a new booking request.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, events.Event{
		Type:      events.BookingCreated,
		RideID:    booking.RideID,
		BookingID: booking.ID,
		ActorID:   booking.PassengerID,
		Payload: map[string]any{
			"driver_id": booking.DriverID,
			"seats":     booking.Seats,
			"price":     booking.Price,
		},
	})
}

// NotifyBookingDecided tells the passenger the driver accepted or rejected
// their booking.
func (s *NotificationService) NotifyBookingDecided(ctx context.Context, booking *domain.Booking, ride *domain.Ride) {
	eventType := events.BookingRejected
	payload := map[string]any{
		"passenger_id": booking.PassengerID,
		"status":       string(booking.Status),
	}
	if booking.Status == domain.BookingStatusAccepted {
		eventType = events.BookingAccepted
		if ride != nil {
			payload["available_seats"] = ride.AvailableSeats
		}
	}

	s.send(ctx, events.Event{
		Type:      eventType,
		RideID:    booking.RideID,
		BookingID: booking.ID,
		ActorID:   booking.DriverID,
		Payload:   payload,
	})
}

// NotifyBookingCancelled tells the driver a passenger withdrew a booking.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, events.Event{
		Type:      events.BookingCancelled,
		RideID:    booking.RideID,
		BookingID: booking.ID,
		ActorID:   booking.PassengerID,
		Payload:   map[string]any{"driver_id": booking.DriverID},
	})
}

// NotifyRideStatusChanged tells the ride's passengers about a status change.
func (s *NotificationService) NotifyRideStatusChanged(ctx context.Context, ride *domain.Ride, previous domain.RideStatus, actorID string) {
	s.send(ctx, events.Event{
		Type:    events.RideStatusChanged,
		RideID:  ride.ID,
		ActorID: actorID,
		Payload: map[string]any{
			"from":       string(previous),
			"to":         string(ride.Status),
			"passengers": passengerIDs(ride),
		},
	})
}

// NotifyRideDeleted reports a deleted ride and how many pending bookings
// went with it.
func (s *NotificationService) NotifyRideDeleted(ctx context.Context, ride *domain.Ride, removedBookings int64) {
	s.send(ctx, events.Event{
		Type:    events.RideDeleted,
		RideID:  ride.ID,
		ActorID: ride.DriverID,
		Payload: map[string]any{"removed_bookings": removedBookings},
	})
}

// NotifyPassengerStatusChanged reports a roster entry status change.
func (s *NotificationService) NotifyPassengerStatusChanged(ctx context.Context, ride *domain.Ride, entry *domain.PassengerEntry, actorID string) {
	s.send(ctx, events.Event{
		Type:    events.PassengerStatusChanged,
		RideID:  ride.ID,
		ActorID: actorID,
		Payload: map[string]any{
			"entry_id":        entry.ID,
			"user_id":         entry.UserID,
			"status":          string(entry.Status),
			"available_seats": ride.AvailableSeats,
		},
	})
}

// NotifyPaymentCompleted tells the driver a passenger paid.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, receipt *domain.Receipt) {
	s.send(ctx, events.Event{
		Type:    events.RidePaymentCompleted,
		RideID:  receipt.RideID,
		ActorID: receipt.PassengerID,
		Payload: map[string]any{
			"receipt_id": receipt.ID,
			"driver_id":  receipt.DriverID,
			"amount":     receipt.Amount,
		},
	})
}

func (s *NotificationService) send(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()

	entry := s.log.WithFields(logrus.Fields{
		"event":      event.Type,
		"ride_id":    event.RideID,
		"booking_id": event.BookingID,
		"actor_id":   event.ActorID,
	})

	if err := s.publisher.Publish(ctx, event); err != nil {
		entry.WithError(err).Warn("failed to publish event")
		return
	}
	entry.Debug("event published")
}

func passengerIDs(ride *domain.Ride) []string {
	if ride.Passengers == nil {
		return nil
	}
	entries := ride.Passengers.All()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return ids
}

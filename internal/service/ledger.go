package service

import (
	"fmt"

	"github.com/google/uuid"

	"sharewheels/internal/domain"
	"sharewheels/internal/repository"
)

// SeatLedger is the only code that changes a ride's available seats and
// passenger roster. It mutates the ride in memory; callers persist it.
//
// Seats are accounted by delta: an entry holds its seats while confirmed, and
// every change adjusts AvailableSeats by the difference in held seats. This
// keeps AvailableSeats + confirmed seats equal to the ride's capacity and makes
// re-confirming the same passenger with the same seats a no-op.
type SeatLedger struct {
	policy Policy
	newID  func() string
}

// NewSeatLedger creates a new SeatLedger.
func NewSeatLedger(policy Policy) *SeatLedger {
	return &SeatLedger{
		policy: policy,
		newID:  func() string { return uuid.New().String() },
	}
}

// ConfirmPassenger confirms userID on the ride with the given seats. An
// existing entry for the user is updated in place; otherwise a new entry is
// appended. Payment is reset to pending.
func (l *SeatLedger) ConfirmPassenger(ride *domain.Ride, userID string, seats int, pickupAddress string) (*domain.PassengerEntry, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if seats < 1 {
		return nil, ErrInvalidSeats
	}

	roster := ride.Roster()
	entry := domain.PassengerEntry{
		ID:            l.newID(),
		UserID:        userID,
		Seats:         seats,
		Status:        domain.PassengerStatusConfirmed,
		PaymentStatus: domain.PaymentStatusPending,
		Pickup:        domain.PickupLocation{Address: pickupAddress},
	}

	held := 0
	if existing, ok := roster.ByUser(userID); ok {
		held = existing.HeldSeats()
		if pickupAddress == "" {
			entry.Pickup = existing.Pickup
		}
	}

	delta := seats - held
	if err := l.reserve(ride, delta); err != nil {
		return nil, err
	}

	confirmed := roster.Upsert(entry)
	ride.AvailableSeats -= delta

	out := *confirmed
	return &out, nil
}

// SetPassengerStatus sets the status of the roster entry with entryID.
// Leaving confirmed releases the entry's seats; entering confirmed takes them.
func (l *SeatLedger) SetPassengerStatus(ride *domain.Ride, entryID string, status domain.PassengerStatus) (*domain.PassengerEntry, error) {
	if !status.Valid() {
		return nil, ErrInvalidPassengerStatus
	}

	entry, ok := ride.Roster().ByID(entryID)
	if !ok {
		return nil, fmt.Errorf("passenger %s: %w", entryID, repository.ErrNotFound)
	}

	nextHeld := 0
	if status == domain.PassengerStatusConfirmed {
		nextHeld = entry.Seats
	}

	delta := nextHeld - entry.HeldSeats()
	if err := l.reserve(ride, delta); err != nil {
		return nil, err
	}

	entry.Status = status
	ride.AvailableSeats -= delta

	out := *entry
	return &out, nil
}

// MarkPaid completes the payment of userID's confirmed entry.
func (l *SeatLedger) MarkPaid(ride *domain.Ride, userID string) (*domain.PassengerEntry, error) {
	entry, ok := ride.Roster().ByUser(userID)
	if !ok || entry.Status != domain.PassengerStatusConfirmed {
		return nil, ErrPassengerNotConfirmed
	}
	if entry.PaymentStatus == domain.PaymentStatusCompleted {
		return nil, ErrAlreadyPaid
	}

	entry.PaymentStatus = domain.PaymentStatusCompleted

	out := *entry
	return &out, nil
}

// reserve checks that delta more seats may be taken. Releasing seats
// (delta <= 0) always succeeds.
func (l *SeatLedger) reserve(ride *domain.Ride, delta int) error {
	if delta <= 0 || !l.policy.StrictSeats {
		return nil
	}
	if delta > ride.AvailableSeats {
		return ErrInsufficientSeats
	}
	return nil
}

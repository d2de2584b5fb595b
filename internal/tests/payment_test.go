package tests

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sharewheels/internal/domain"
	"sharewheels/internal/events"
	"sharewheels/internal/repository"
	"sharewheels/internal/service"
)

// ──────────────────────────────────────────────
// PAY FOR RIDE
// ──────────────────────────────────────────────

func TestPayForRide_CreditsDriverExactlyOnce(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 4, 150)
	w.accept(t, w.book(t, ride.ID, passengerID, 3, 450).ID)
	ctx := context.Background()

	receipt, err := w.paymentService.PayForRide(ctx, passengerID, ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Seats != 3 || receipt.PricePerSeat != 150 || receipt.Amount != 450 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if receipt.DriverID != driverID || receipt.PassengerID != passengerID {
		t.Errorf("receipt parties mismatch: %+v", receipt)
	}

	_, err = w.paymentService.PayForRide(ctx, passengerID, ride.ID)
	if !errors.Is(err, service.ErrAlreadyPaid) {
		t.Errorf("expected ErrAlreadyPaid, got %v", err)
	}
	if got := w.users.Earnings(driverID); got != 450 {
		t.Errorf("expected earnings 450 after double pay, got %v", got)
	}

	event, ok := w.publisher.Last(events.RidePaymentCompleted)
	if !ok {
		t.Fatal("expected ride.payment_completed event")
	}
	if event.Payload["amount"] != 450.0 {
		t.Errorf("expected amount 450 in event, got %v", event.Payload["amount"])
	}
}

func TestPayForRide_RequiresConfirmedEntry(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	ctx := context.Background()

	// No entry at all.
	_, err := w.paymentService.PayForRide(ctx, passengerID, ride.ID)
	if !errors.Is(err, service.ErrPassengerNotConfirmed) {
		t.Errorf("expected ErrPassengerNotConfirmed, got %v", err)
	}

	// Entry exists but was cancelled.
	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)
	entry, _ := w.rides.GetRide(ride.ID).Roster().ByUser(passengerID)
	if _, err := w.rideService.UpdatePassengerStatus(ctx, passengerID, ride.ID, entry.ID, string(domain.PassengerStatusCancelled)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = w.paymentService.PayForRide(ctx, passengerID, ride.ID)
	if !errors.Is(err, service.ErrPassengerNotConfirmed) {
		t.Errorf("expected ErrPassengerNotConfirmed for cancelled entry, got %v", err)
	}
	if w.users.AddEarningsCallCount != 0 {
		t.Error("earnings must not change for rejected payments")
	}
}

func TestPayForRide_UnknownRide(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	_, err := w.paymentService.PayForRide(context.Background(), passengerID, "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPayForRide_EarningsFailure_RollsBackPayment(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)
	w.users.AddEarningsError = ErrMockTimeout

	_, err := w.paymentService.PayForRide(context.Background(), passengerID, ride.ID)
	if !errors.Is(err, ErrMockTimeout) {
		t.Fatalf("expected ErrMockTimeout, got %v", err)
	}

	entry, _ := w.rides.GetRide(ride.ID).Roster().ByUser(passengerID)
	if entry.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected payment to stay pending, got %s", entry.PaymentStatus)
	}
}

func TestPayForRide_MissingDriverRecord_StillCompletes(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	w.rides.AddRide(&domain.Ride{
		ID:             "ride-orphan",
		DriverID:       "driver-deleted",
		TotalSeats:     2,
		AvailableSeats: 1,
		PricePerSeat:   90,
		Status:         domain.RideStatusScheduled,
		Passengers: domain.NewPassengers([]domain.PassengerEntry{{
			ID:     "entry-1",
			UserID: passengerID,
			Seats:  1,
			Status: domain.PassengerStatusConfirmed,
		}}),
	})

	receipt, err := w.paymentService.PayForRide(context.Background(), passengerID, "ride-orphan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Amount != 90 {
		t.Errorf("expected amount 90, got %v", receipt.Amount)
	}
}

// ──────────────────────────────────────────────
// RECEIPTS
// ──────────────────────────────────────────────

func TestReceipt_Format(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 99.5)
	w.accept(t, w.book(t, ride.ID, passengerID, 2, 199).ID)

	receipt, err := w.paymentService.PayForRide(context.Background(), passengerID, ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := service.NewReceiptService().FormatReceipt(receipt)
	for _, want := range []string{"Bengaluru", "Mysuru", "199.00", "99.50"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected receipt to contain %q:\n%s", want, text)
		}
	}
}

package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"sharewheels/internal/domain"
	"sharewheels/internal/events"
	"sharewheels/internal/repository"
	"sharewheels/internal/service"
)

// ──────────────────────────────────────────────
// 1. RIDE CREATION
// ──────────────────────────────────────────────

func TestRideCreation_ValidInput_Succeeds(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)

	if ride.ID == "" {
		t.Error("expected ride ID to be set")
	}
	if ride.Status != domain.RideStatusScheduled {
		t.Errorf("expected scheduled, got %s", ride.Status)
	}
	if ride.DriverID != driverID {
		t.Errorf("expected driver %s, got %s", driverID, ride.DriverID)
	}
	if ride.TotalSeats != 3 || ride.AvailableSeats != 3 {
		t.Errorf("expected 3/3 seats, got %d/%d", ride.AvailableSeats, ride.TotalSeats)
	}
	if !w.geo.HasRide(ride.ID) {
		t.Error("expected ride origin to be indexed")
	}
}

func TestRideCreation_InvalidInput_Fails(t *testing.T) {
	t.Parallel()

	negative := -5
	testCases := []struct {
		name    string
		mutate  func(*service.CreateRideRequest)
		wantErr error
	}{
		{"missing vehicle model", func(r *service.CreateRideRequest) { r.Vehicle.Model = "" }, service.ErrMissingFields},
		{"missing origin city", func(r *service.CreateRideRequest) { r.From.City = " " }, service.ErrMissingFields},
		{"missing destination address", func(r *service.CreateRideRequest) { r.To.Address = "" }, service.ErrMissingFields},
		{"missing departure", func(r *service.CreateRideRequest) { r.DepartureTime = time.Time{} }, service.ErrMissingFields},
		{"zero seats", func(r *service.CreateRideRequest) { r.AvailableSeats = 0 }, service.ErrInvalidSeats},
		{"zero price", func(r *service.CreateRideRequest) { r.PricePerSeat = 0 }, service.ErrInvalidPrice},
		{"negative duration", func(r *service.CreateRideRequest) { r.EstimatedDuration = &negative }, service.ErrInvalidDuration},
		{"latitude out of range", func(r *service.CreateRideRequest) {
			r.From.Coordinates = &domain.Coordinates{Lat: 91, Lng: 0}
		}, service.ErrInvalidLocation},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := newWorkflow(t, service.Policy{})
			req := validRideRequest(3, 100)
			tc.mutate(&req)

			_, err := w.rideService.CreateRide(context.Background(), driverID, req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if w.rides.CreateCallCount != 0 {
				t.Error("invalid ride should not be stored")
			}
		})
	}
}

func TestRideCreation_MissingCaller_Fails(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	_, err := w.rideService.CreateRide(context.Background(), "", validRideRequest(3, 100))
	if !errors.Is(err, service.ErrMissingCaller) {
		t.Errorf("expected ErrMissingCaller, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 2. LISTING AND LOOKUP
// ──────────────────────────────────────────────

func TestListRides_Filters(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ctx := context.Background()

	early := validRideRequest(1, 100)
	early.DepartureTime = time.Date(2026, 11, 2, 6, 0, 0, 0, time.UTC)
	late := validRideRequest(4, 100)
	late.DepartureTime = time.Date(2026, 11, 2, 20, 0, 0, 0, time.UTC)
	other := validRideRequest(4, 100)
	other.To.City = "Chennai"
	other.DepartureTime = time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)

	for _, req := range []service.CreateRideRequest{late, other, early} {
		if _, err := w.rideService.CreateRide(ctx, driverID, req); err != nil {
			t.Fatalf("failed to create ride: %v", err)
		}
	}

	all, err := w.rideService.ListRides(ctx, service.ListRidesRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rides, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].DepartureTime.Before(all[i-1].DepartureTime) {
			t.Error("expected rides ordered by departure time")
		}
	}

	day := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		req  service.ListRidesRequest
		want int
	}{
		{"by destination", service.ListRidesRequest{ToCity: "Mysuru"}, 2},
		{"by origin", service.ListRidesRequest{FromCity: "Bengaluru"}, 3},
		{"by date", service.ListRidesRequest{Date: &day}, 2},
		{"by min seats", service.ListRidesRequest{MinSeats: 2}, 2},
		{"combined", service.ListRidesRequest{ToCity: "Mysuru", MinSeats: 2}, 1},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rides, err := w.rideService.ListRides(ctx, tc.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rides) != tc.want {
				t.Errorf("expected %d rides, got %d", tc.want, len(rides))
			}
		})
	}
}

func TestListRides_Near_UsesGeoIndex(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ctx := context.Background()

	indexed := w.createRide(t, 3, 100)

	noCoords := validRideRequest(3, 100)
	noCoords.From.Coordinates = nil
	if _, err := w.rideService.CreateRide(ctx, driverID, noCoords); err != nil {
		t.Fatalf("failed to create ride: %v", err)
	}

	rides, err := w.rideService.ListRides(ctx, service.ListRidesRequest{
		Near: &service.NearQuery{Lat: 12.97, Lng: 77.59, RadiusKm: 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != indexed.ID {
		t.Errorf("expected only the indexed ride, got %d rides", len(rides))
	}

	_, err = w.rideService.ListRides(ctx, service.ListRidesRequest{
		Near: &service.NearQuery{Lat: 12.97, Lng: 77.59, RadiusKm: 0},
	})
	if !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation for zero radius, got %v", err)
	}
}

func TestGetRide_ReadsThroughCache(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	ctx := context.Background()

	if _, err := w.rideService.GetRide(ctx, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.cache.IsCached(ride.ID) {
		t.Fatal("expected ride to be cached after first read")
	}

	if _, err := w.rideService.GetRide(ctx, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.cache.HitCount != 1 {
		t.Errorf("expected 1 cache hit, got %d", w.cache.HitCount)
	}

	// A seat change invalidates the cached copy.
	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)
	if w.cache.IsCached(ride.ID) {
		t.Error("expected cache to be invalidated by accept")
	}

	got, err := w.rideService.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AvailableSeats != 2 {
		t.Errorf("expected fresh ride with 2 seats, got %d", got.AvailableSeats)
	}
}

func TestGetRide_LateFillAfterAccept_DoesNotServeStaleRide(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	ctx := context.Background()

	// Copy read from the store before the accept commits.
	stale := w.rides.GetRide(ride.ID)

	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)

	// The slow reader's fill lands after the invalidation.
	if err := w.cache.SetRide(ctx, stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := w.rideService.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AvailableSeats != 2 {
		t.Errorf("expected 2 seats from the store, got %d", got.AvailableSeats)
	}

	w.cache.ReleaseHold(ride.ID)
	if _, err := w.rideService.GetRide(ctx, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.cache.IsCached(ride.ID) {
		t.Error("expected the ride to be cached again once the hold ends")
	}
}

func TestGetRide_CacheFailure_FallsBackToStore(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.cache.GetError = errors.New("redis down")

	got, err := w.rideService.GetRide(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != ride.ID {
		t.Errorf("expected ride %s, got %s", ride.ID, got.ID)
	}
}

func TestGetRide_NotFound(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	_, err := w.rideService.GetRide(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 3. UPDATE AND DELETE
// ──────────────────────────────────────────────

func TestUpdateRide_NonDriver_Forbidden(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	notes := "no smoking"

	_, err := w.rideService.UpdateRide(context.Background(), passengerID, ride.ID, service.RidePatch{Notes: &notes})
	if !errors.Is(err, service.ErrNotRideDriver) {
		t.Errorf("expected ErrNotRideDriver, got %v", err)
	}
	if w.rides.GetRide(ride.ID).Notes != "" {
		t.Error("ride should not be modified")
	}
}

func TestUpdateRide_SeatsPatch_KeepsCapacityConsistent(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.accept(t, w.book(t, ride.ID, passengerID, 2, 200).ID)

	seats := 4
	price := 120.0
	updated, err := w.rideService.UpdateRide(context.Background(), driverID, ride.ID, service.RidePatch{
		AvailableSeats: &seats,
		PricePerSeat:   &price,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AvailableSeats != 4 || updated.TotalSeats != 6 {
		t.Errorf("expected 4 available of 6, got %d of %d", updated.AvailableSeats, updated.TotalSeats)
	}
	if updated.PricePerSeat != 120 {
		t.Errorf("expected price 120, got %v", updated.PricePerSeat)
	}
	assertSeatInvariant(t, w.rides.GetRide(ride.ID))
}

func TestDeleteRide_OnlyPendingBookings_CascadesDelete(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	first := w.book(t, ride.ID, passengerID, 1, 100)
	second := w.book(t, ride.ID, otherID, 1, 100)

	if err := w.rideService.DeleteRide(context.Background(), driverID, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.rides.GetRide(ride.ID) != nil {
		t.Error("ride should be deleted")
	}
	if w.bookings.GetBooking(first.ID) != nil || w.bookings.GetBooking(second.ID) != nil {
		t.Error("pending bookings should be deleted with the ride")
	}
	if w.geo.HasRide(ride.ID) {
		t.Error("ride origin should be removed from the geo index")
	}
	event, ok := w.publisher.Last(events.RideDeleted)
	if !ok {
		t.Fatal("expected ride.deleted event")
	}
	if event.Payload["removed_bookings"] != int64(2) {
		t.Errorf("expected 2 removed bookings in event, got %v", event.Payload["removed_bookings"])
	}
}

func TestDeleteRide_RejectedBookingsAreKept(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	booking := w.book(t, ride.ID, passengerID, 1, 100)
	if _, err := w.bookingService.UpdateBookingStatus(context.Background(), driverID, booking.ID, string(domain.BookingStatusRejected)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := w.rideService.DeleteRide(context.Background(), driverID, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.bookings.GetBooking(booking.ID) == nil {
		t.Error("only pending bookings are cascade deleted")
	}
}

func TestDeleteRide_NonDriver_Forbidden(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	booking := w.book(t, ride.ID, passengerID, 1, 100)

	err := w.rideService.DeleteRide(context.Background(), passengerID, ride.ID)
	if !errors.Is(err, service.ErrNotRideDriver) {
		t.Errorf("expected ErrNotRideDriver, got %v", err)
	}
	if w.rides.GetRide(ride.ID) == nil || w.bookings.GetBooking(booking.ID) == nil {
		t.Error("nothing should be deleted")
	}
}

func TestDeleteRide_AcceptedBookingWithCancelledEntry_Conflicts(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)

	// The passenger leaves through the roster, but the booking stays accepted.
	entry, _ := w.rides.GetRide(ride.ID).Roster().ByUser(passengerID)
	if _, err := w.rideService.UpdatePassengerStatus(context.Background(), passengerID, ride.ID, entry.ID, string(domain.PassengerStatusCancelled)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := w.rideService.DeleteRide(context.Background(), driverID, ride.ID)
	if !errors.Is(err, service.ErrRideHasConfirmedBookings) {
		t.Errorf("expected ErrRideHasConfirmedBookings, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 4. RIDE STATUS
// ──────────────────────────────────────────────

func TestUpdateRideStatus_PermissiveAllowsAnyOrder(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	ctx := context.Background()

	for _, status := range []string{"started", "completed", "scheduled"} {
		got, err := w.rideService.UpdateRideStatus(ctx, driverID, ride.ID, status)
		if err != nil {
			t.Fatalf("status %s: unexpected error: %v", status, err)
		}
		if string(got.Status) != status {
			t.Errorf("expected %s, got %s", status, got.Status)
		}
	}

	// Any caller may change the status when transitions are not enforced.
	if _, err := w.rideService.UpdateRideStatus(ctx, otherID, ride.ID, "cancelled"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUpdateRideStatus_InProgressAlias(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)

	got, err := w.rideService.UpdateRideStatus(context.Background(), driverID, ride.ID, "in-progress")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.RideStatusStarted {
		t.Errorf("expected started, got %s", got.Status)
	}
}

func TestUpdateRideStatus_UnknownStatus_Fails(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)

	_, err := w.rideService.UpdateRideStatus(context.Background(), driverID, ride.ID, "teleported")
	if !errors.Is(err, service.ErrInvalidRideStatus) {
		t.Errorf("expected ErrInvalidRideStatus, got %v", err)
	}
}

func TestUpdateRideStatus_CompletedRideLeavesGeoIndex(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)

	if _, err := w.rideService.UpdateRideStatus(context.Background(), driverID, ride.ID, "completed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.geo.HasRide(ride.ID) {
		t.Error("completed ride should not be searchable by location")
	}
}

// ──────────────────────────────────────────────
// 5. PASSENGER ENTRY STATUS
// ──────────────────────────────────────────────

func TestUpdatePassengerStatus_CancelRestoresSeats(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.accept(t, w.book(t, ride.ID, passengerID, 2, 200).ID)
	entry, _ := w.rides.GetRide(ride.ID).Roster().ByUser(passengerID)

	updated, err := w.rideService.UpdatePassengerStatus(context.Background(), passengerID, ride.ID, entry.ID, string(domain.PassengerStatusCancelled))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.PassengerStatusCancelled {
		t.Errorf("expected cancelled, got %s", updated.Status)
	}

	stored := w.rides.GetRide(ride.ID)
	if stored.AvailableSeats != 3 {
		t.Errorf("expected seats restored to 3, got %d", stored.AvailableSeats)
	}
	assertSeatInvariant(t, stored)

	// The driver re-confirms the passenger.
	if _, err := w.rideService.UpdatePassengerStatus(context.Background(), driverID, ride.ID, entry.ID, string(domain.PassengerStatusConfirmed)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := w.rides.GetRide(ride.ID).AvailableSeats; got != 1 {
		t.Errorf("expected 1 seat after re-confirm, got %d", got)
	}
}

func TestUpdatePassengerStatus_Errors(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)
	entry, _ := w.rides.GetRide(ride.ID).Roster().ByUser(passengerID)
	ctx := context.Background()

	_, err := w.rideService.UpdatePassengerStatus(ctx, otherID, ride.ID, entry.ID, "cancelled")
	if !errors.Is(err, service.ErrNotRideParticipant) {
		t.Errorf("expected ErrNotRideParticipant, got %v", err)
	}

	_, err = w.rideService.UpdatePassengerStatus(ctx, driverID, ride.ID, "no-such-entry", "cancelled")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = w.rideService.UpdatePassengerStatus(ctx, driverID, ride.ID, entry.ID, "gone")
	if !errors.Is(err, service.ErrInvalidPassengerStatus) {
		t.Errorf("expected ErrInvalidPassengerStatus, got %v", err)
	}

	if got := w.rides.GetRide(ride.ID).AvailableSeats; got != 2 {
		t.Errorf("failed updates must not change seats, got %d", got)
	}
}

// ──────────────────────────────────────────────
// 6. USER RIDES AND HISTORY
// ──────────────────────────────────────────────

func TestUserRides_DriverAndPassenger(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ride := w.createRide(t, 3, 100)
	w.createRide(t, 2, 80)
	w.accept(t, w.book(t, ride.ID, passengerID, 1, 100).ID)
	ctx := context.Background()

	driving, err := w.rideService.UserRides(ctx, driverID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(driving) != 2 {
		t.Errorf("expected 2 rides for driver, got %d", len(driving))
	}

	riding, err := w.rideService.UserRides(ctx, passengerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(riding) != 1 || riding[0].ID != ride.ID {
		t.Errorf("expected passenger to see their ride, got %d rides", len(riding))
	}
}

func TestRideHistory_GroupsFinishedRides(t *testing.T) {
	t.Parallel()

	w := newWorkflow(t, service.Policy{})
	ctx := context.Background()

	done := w.createRide(t, 3, 100)
	dropped := w.createRide(t, 3, 100)
	w.createRide(t, 3, 100) // still scheduled
	w.accept(t, w.book(t, done.ID, passengerID, 1, 100).ID)

	if _, err := w.rideService.UpdateRideStatus(ctx, driverID, done.ID, "completed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.rideService.UpdateRideStatus(ctx, driverID, dropped.ID, "cancelled"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := w.rideService.RideHistory(ctx, driverID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history.Completed) != 1 || len(history.Cancelled) != 1 {
		t.Errorf("expected 1 completed and 1 cancelled, got %d and %d", len(history.Completed), len(history.Cancelled))
	}

	passengerHistory, err := w.rideService.RideHistory(ctx, passengerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passengerHistory.Completed) != 1 || len(passengerHistory.Cancelled) != 0 {
		t.Errorf("expected passenger to have 1 completed ride, got %d/%d",
			len(passengerHistory.Completed), len(passengerHistory.Cancelled))
	}
}

package tests

import (
	"context"
	"testing"
	"time"

	"sharewheels/internal/domain"
	"sharewheels/internal/logger"
	"sharewheels/internal/service"
)

const (
	driverID    = "driver-1"
	passengerID = "passenger-1"
	otherID     = "passenger-2"
)

// workflow bundles the services under test with their in-memory collaborators.
type workflow struct {
	rides     *MockRideRepository
	bookings  *MockBookingRepository
	users     *MockUserRepository
	tx        *MockTxManager
	locks     *MockLockStore
	cache     *MockRideCache
	geo       *MockGeoIndex
	publisher *MockPublisher

	rideService    *service.RideService
	bookingService *service.BookingService
	paymentService *service.PaymentService
	userService    *service.UserService
}

func newWorkflow(t *testing.T, policy service.Policy) *workflow {
	t.Helper()

	w := &workflow{
		rides:     NewMockRideRepository(),
		bookings:  NewMockBookingRepository(),
		users:     NewMockUserRepository(),
		locks:     NewMockLockStore(),
		cache:     NewMockRideCache(),
		geo:       NewMockGeoIndex(),
		publisher: NewMockPublisher(),
	}
	w.tx = NewMockTxManager(w.rides, w.bookings, w.users)

	log := logger.Discard()
	deps := service.Deps{
		Rides:    w.rides,
		Bookings: w.bookings,
		Users:    w.users,
		Tx:       w.tx,
		Cache:    w.cache,
		Geo:      w.geo,
		Locks:    w.locks,
		Notifier: service.NewNotificationService(w.publisher, log),
		Policy:   policy,
		Log:      log,
	}

	w.rideService = service.NewRideService(deps)
	w.bookingService = service.NewBookingService(deps)
	w.paymentService = service.NewPaymentService(deps)
	w.userService = service.NewUserService(w.users, log)

	w.users.AddUser(&domain.User{ID: driverID, Name: "Dana", Email: "dana@example.com", Role: domain.UserRoleDriver})
	w.users.AddUser(&domain.User{ID: passengerID, Name: "Priya", Email: "priya@example.com", Role: domain.UserRolePassenger})
	w.users.AddUser(&domain.User{ID: otherID, Name: "Quinn", Email: "quinn@example.com", Role: domain.UserRolePassenger})

	return w
}

func validRideRequest(seats int, price float64) service.CreateRideRequest {
	return service.CreateRideRequest{
		Vehicle: domain.VehicleSnapshot{Model: "Corolla", Color: "blue", LicensePlate: "KA01AB1234"},
		From: domain.Place{
			City:        "Bengaluru",
			Address:     "MG Road",
			Coordinates: &domain.Coordinates{Lat: 12.9716, Lng: 77.5946},
		},
		To: domain.Place{
			City:    "Mysuru",
			Address: "Palace Road",
		},
		DepartureTime:  time.Date(2026, 11, 2, 8, 30, 0, 0, time.UTC),
		AvailableSeats: seats,
		PricePerSeat:   price,
	}
}

func (w *workflow) createRide(t *testing.T, seats int, price float64) *domain.Ride {
	t.Helper()
	ride, err := w.rideService.CreateRide(context.Background(), driverID, validRideRequest(seats, price))
	if err != nil {
		t.Fatalf("failed to create ride: %v", err)
	}
	return ride
}

func (w *workflow) book(t *testing.T, rideID, userID string, seats int, price float64) *domain.Booking {
	t.Helper()
	booking, err := w.bookingService.CreateBooking(context.Background(), userID, service.CreateBookingRequest{
		RideID:          rideID,
		Seats:           seats,
		PickupLocation:  "Majestic",
		DropoffLocation: "Mysuru Palace",
		Price:           price,
	})
	if err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	return booking
}

func (w *workflow) accept(t *testing.T, bookingID string) *domain.Booking {
	t.Helper()
	booking, err := w.bookingService.UpdateBookingStatus(context.Background(), driverID, bookingID, string(domain.BookingStatusAccepted))
	if err != nil {
		t.Fatalf("failed to accept booking: %v", err)
	}
	return booking
}

// assertSeatInvariant checks available + confirmed seats equals capacity.
func assertSeatInvariant(t *testing.T, ride *domain.Ride) {
	t.Helper()
	confirmed := ride.Roster().ConfirmedSeats()
	if ride.AvailableSeats+confirmed != ride.TotalSeats {
		t.Errorf("seat invariant broken: available %d + confirmed %d != total %d",
			ride.AvailableSeats, confirmed, ride.TotalSeats)
	}
}

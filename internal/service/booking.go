package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/repository"
)

// priceTolerance absorbs float rounding when verifying booking prices.
const priceTolerance = 0.005

// BookingService handles passenger booking requests and driver decisions.
type BookingService struct {
	rides    repository.RideRepository
	bookings repository.BookingRepository
	tx       repository.TxManager
	ledger   *SeatLedger
	notifier *NotificationService
	coord    rideCoordinator
	policy   Policy
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(deps Deps) *BookingService {
	deps = deps.withDefaults()
	return &BookingService{
		rides:    deps.Rides,
		bookings: deps.Bookings,
		tx:       deps.Tx,
		ledger:   NewSeatLedger(deps.Policy),
		notifier: deps.Notifier,
		coord:    newRideCoordinator(deps),
		policy:   deps.Policy,
		log:      deps.Log,
		now:      time.Now,
	}
}

// CreateBookingRequest contains the parameters for requesting seats on a ride.
type CreateBookingRequest struct {
	RideID          string
	Seats           int
	PickupLocation  string
	DropoffLocation string
	Price           float64
	SpecialRequests string
}

// CreateBooking records a pending booking by the caller on a ride.
func (s *BookingService) CreateBooking(ctx context.Context, callerID string, req CreateBookingRequest) (*domain.Booking, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}
	if err := validateCreateBooking(req); err != nil {
		return nil, err
	}

	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	if s.policy.VerifyPrice && math.Abs(req.Price-fare(req.Seats, ride.PricePerSeat)) > priceTolerance {
		return nil, ErrPriceMismatch
	}
	if s.policy.StrictSeats && req.Seats > ride.AvailableSeats {
		return nil, ErrInsufficientSeats
	}

	specialRequests := strings.TrimSpace(req.SpecialRequests)
	if specialRequests == "" {
		specialRequests = domain.DefaultSpecialRequests
	}

	now := s.now().UTC()
	booking := &domain.Booking{
		ID:              uuid.New().String(),
		RideID:          ride.ID,
		PassengerID:     callerID,
		DriverID:        ride.DriverID,
		Seats:           req.Seats,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		Price:           req.Price,
		SpecialRequests: specialRequests,
		Status:          domain.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.notifier.NotifyBookingCreated(ctx, booking)

	s.log.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"ride_id":      booking.RideID,
		"passenger_id": callerID,
		"seats":        booking.Seats,
	}).Info("booking created")

	return booking, nil
}

// UpdateBookingStatus lets the booking's driver accept or reject it.
// Accepting confirms the passenger on the ride; the booking and the ride are
// written in one transaction.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, callerID, bookingID, status string) (*domain.Booking, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	next := domain.BookingStatus(status)
	if next != domain.BookingStatusAccepted && next != domain.BookingStatusRejected {
		return nil, ErrInvalidBookingStatus
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.DriverID != callerID {
		return nil, ErrNotBookingDriver
	}

	if next == domain.BookingStatusRejected {
		booking.Status = next
		booking.UpdatedAt = s.now().UTC()
		if err := s.bookings.Update(ctx, booking); err != nil {
			return nil, err
		}

		s.notifier.NotifyBookingDecided(ctx, booking, nil)
		s.logDecision(booking, nil)
		return booking, nil
	}

	var ride *domain.Ride
	err = s.coord.withRideLock(ctx, booking.RideID, func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, stores repository.Stores) error {
			var err error
			ride, err = stores.Rides.GetByID(ctx, booking.RideID)
			if err != nil {
				return fmt.Errorf("ride %s of booking %s: %w", booking.RideID, booking.ID, err)
			}

			if _, err := s.ledger.ConfirmPassenger(ride, booking.PassengerID, booking.Seats, booking.PickupLocation); err != nil {
				return err
			}

			now := s.now().UTC()
			booking.Status = next
			booking.UpdatedAt = now
			ride.UpdatedAt = now

			if err := stores.Bookings.Update(ctx, booking); err != nil {
				return err
			}
			return stores.Rides.Update(ctx, ride)
		})
	})
	if err != nil {
		return nil, err
	}

	s.coord.invalidate(ctx, booking.RideID)
	s.notifier.NotifyBookingDecided(ctx, booking, ride)
	s.logDecision(booking, ride)

	return booking, nil
}

// CancelBooking deletes a booking made by the caller.
func (s *BookingService) CancelBooking(ctx context.Context, callerID, bookingID string) error {
	if callerID == "" {
		return ErrMissingCaller
	}
	if bookingID == "" {
		return ErrInvalidBookingID
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.PassengerID != callerID {
		return ErrNotBookingPassenger
	}

	if err := s.bookings.Delete(ctx, bookingID); err != nil {
		return err
	}

	s.notifier.NotifyBookingCancelled(ctx, booking)

	s.log.WithFields(logrus.Fields{
		"booking_id":   bookingID,
		"ride_id":      booking.RideID,
		"passenger_id": callerID,
	}).Info("booking cancelled")

	return nil
}

// BookingsForUser lists the caller's bookings as a passenger or as a driver,
// newest first.
func (s *BookingService) BookingsForUser(ctx context.Context, callerID string, role domain.UserRole) ([]*domain.Booking, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}

	switch role {
	case domain.UserRolePassenger:
		return s.bookings.FindByPassenger(ctx, callerID)
	case domain.UserRoleDriver:
		return s.bookings.FindByDriver(ctx, callerID)
	default:
		return nil, ErrInvalidRole
	}
}

func (s *BookingService) logDecision(booking *domain.Booking, ride *domain.Ride) {
	fields := logrus.Fields{
		"booking_id": booking.ID,
		"ride_id":    booking.RideID,
		"status":     booking.Status,
	}
	if ride != nil {
		fields["available_seats"] = ride.AvailableSeats
	}
	s.log.WithFields(fields).Info("booking status updated")
}

func validateCreateBooking(req CreateBookingRequest) error {
	var missing []string
	if strings.TrimSpace(req.RideID) == "" {
		missing = append(missing, "ride")
	}
	if strings.TrimSpace(req.PickupLocation) == "" {
		missing = append(missing, "pickupLocation")
	}
	if strings.TrimSpace(req.DropoffLocation) == "" {
		missing = append(missing, "dropoffLocation")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if req.Seats < 1 {
		return ErrInvalidSeats
	}
	if req.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

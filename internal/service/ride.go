package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/redis"
	"sharewheels/internal/repository"
)

// RideService handles ride offers, their status and their passenger roster.
type RideService struct {
	rides    repository.RideRepository
	tx       repository.TxManager
	geo      redis.GeoIndexInterface
	ledger   *SeatLedger
	notifier *NotificationService
	coord    rideCoordinator
	policy   Policy
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(deps Deps) *RideService {
	deps = deps.withDefaults()
	return &RideService{
		rides:    deps.Rides,
		tx:       deps.Tx,
		geo:      deps.Geo,
		ledger:   NewSeatLedger(deps.Policy),
		notifier: deps.Notifier,
		coord:    newRideCoordinator(deps),
		policy:   deps.Policy,
		log:      deps.Log,
		now:      time.Now,
	}
}

// CreateRideRequest contains the parameters for offering a ride.
type CreateRideRequest struct {
	Vehicle           domain.VehicleSnapshot
	From              domain.Place
	To                domain.Place
	DepartureTime     time.Time
	EstimatedDuration *int
	AvailableSeats    int
	PricePerSeat      float64
	Rules             []string
	Notes             string
}

// CreateRide creates a scheduled ride driven by the caller.
func (s *RideService) CreateRide(ctx context.Context, callerID string, req CreateRideRequest) (*domain.Ride, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}
	if err := validateCreateRide(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ride := &domain.Ride{
		ID:                uuid.New().String(),
		DriverID:          callerID,
		Vehicle:           req.Vehicle,
		From:              req.From,
		To:                req.To,
		DepartureTime:     req.DepartureTime.UTC(),
		EstimatedDuration: req.EstimatedDuration,
		TotalSeats:        req.AvailableSeats,
		AvailableSeats:    req.AvailableSeats,
		PricePerSeat:      req.PricePerSeat,
		Status:            domain.RideStatusScheduled,
		Passengers:        domain.NewPassengers(nil),
		Rules:             req.Rules,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.indexOrigin(ctx, ride)

	s.log.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"driver_id": ride.DriverID,
		"seats":     ride.AvailableSeats,
	}).Info("ride created")

	return ride, nil
}

// NearQuery restricts a ride search to origins within RadiusKm of a point.
type NearQuery struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// ListRidesRequest contains the optional ride search filters.
type ListRidesRequest struct {
	FromCity string
	ToCity   string
	Date     *time.Time
	MinSeats int
	Near     *NearQuery
}

// ListRides returns rides matching the filters ordered by departure time.
// The near filter is ignored when no geo index is configured.
func (s *RideService) ListRides(ctx context.Context, req ListRidesRequest) ([]*domain.Ride, error) {
	if req.MinSeats < 0 {
		return nil, ErrInvalidSeats
	}

	filter := repository.RideFilter{
		FromCity: req.FromCity,
		ToCity:   req.ToCity,
		Date:     req.Date,
		MinSeats: req.MinSeats,
	}

	if req.Near != nil && s.geo != nil {
		if !isValidLatitude(req.Near.Lat) || !isValidLongitude(req.Near.Lng) || req.Near.RadiusKm <= 0 {
			return nil, ErrInvalidLocation
		}

		nearby, err := s.geo.FindNearbyRides(ctx, req.Near.Lat, req.Near.Lng, req.Near.RadiusKm)
		if err != nil {
			return nil, fmt.Errorf("failed to search nearby rides: %w", err)
		}

		filter.IDs = make([]string, 0, len(nearby))
		for _, loc := range nearby {
			filter.IDs = append(filter.IDs, loc.RideID)
		}
	}

	return s.rides.Find(ctx, filter)
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	return s.coord.readThrough(ctx, s.rides, rideID)
}

// RidePatch lists the ride fields a driver may change. Nil fields are left
// untouched.
type RidePatch struct {
	Vehicle           *domain.VehicleSnapshot
	From              *domain.Place
	To                *domain.Place
	DepartureTime     *time.Time
	EstimatedDuration *int
	AvailableSeats    *int
	PricePerSeat      *float64
	Rules             *[]string
	Notes             *string
}

// UpdateRide applies patch to a ride owned by the caller.
func (s *RideService) UpdateRide(ctx context.Context, callerID, rideID string, patch RidePatch) (*domain.Ride, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var ride *domain.Ride
	err := s.coord.withRideLock(ctx, rideID, func() error {
		var err error
		ride, err = s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		if !ride.IsDriver(callerID) {
			return ErrNotRideDriver
		}

		applyPatch(ride, patch)
		ride.UpdatedAt = s.now().UTC()

		return s.rides.Update(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	s.coord.invalidate(ctx, ride.ID)
	if patch.From != nil {
		s.indexOrigin(ctx, ride)
	}

	s.log.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"driver_id": callerID,
	}).Info("ride updated")

	return ride, nil
}

// DeleteRide deletes a ride owned by the caller together with its pending
// bookings. Rides with confirmed passengers or accepted bookings are kept.
func (s *RideService) DeleteRide(ctx context.Context, callerID, rideID string) error {
	if callerID == "" {
		return ErrMissingCaller
	}
	if rideID == "" {
		return ErrInvalidRideID
	}

	var (
		deleted *domain.Ride
		removed int64
	)
	err := s.coord.withRideLock(ctx, rideID, func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, stores repository.Stores) error {
			ride, err := stores.Rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}

			if !ride.IsDriver(callerID) {
				return ErrNotRideDriver
			}

			if ride.Roster().HasConfirmed() {
				return ErrRideHasConfirmedBookings
			}

			confirmed, err := stores.Bookings.CountByRideAndStatus(ctx, rideID,
				domain.BookingStatusAccepted, domain.BookingStatusConfirmed)
			if err != nil {
				return err
			}
			if confirmed > 0 {
				return ErrRideHasConfirmedBookings
			}

			removed, err = stores.Bookings.DeleteByRideAndStatus(ctx, rideID, domain.BookingStatusPending)
			if err != nil {
				return err
			}

			if err := stores.Rides.Delete(ctx, rideID); err != nil {
				return err
			}

			deleted = ride
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.coord.invalidate(ctx, rideID)
	s.unindexOrigin(ctx, rideID)
	s.notifier.NotifyRideDeleted(ctx, deleted, removed)

	s.log.WithFields(logrus.Fields{
		"ride_id":          rideID,
		"driver_id":        callerID,
		"removed_bookings": removed,
	}).Info("ride deleted")

	return nil
}

// UserRides returns the rides the caller drives or has a seat record on.
func (s *RideService) UserRides(ctx context.Context, callerID string) ([]*domain.Ride, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}

	return s.rides.FindByUser(ctx, callerID)
}

// RideHistory groups a user's finished rides.
type RideHistory struct {
	Completed []*domain.Ride
	Cancelled []*domain.Ride
}

// RideHistory returns the user's completed and cancelled rides.
func (s *RideService) RideHistory(ctx context.Context, userID string) (*RideHistory, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	completed, cancelled, err := s.rides.FindHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &RideHistory{Completed: completed, Cancelled: cancelled}, nil
}

// UpdateRideStatus sets the ride status. Under the permissive policy any
// enumerated status is accepted from any caller; strict transitions require
// the driver and the normal lifecycle order.
func (s *RideService) UpdateRideStatus(ctx context.Context, callerID, rideID, status string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	next, ok := domain.ParseRideStatus(status)
	if !ok {
		return nil, ErrInvalidRideStatus
	}

	var (
		ride     *domain.Ride
		previous domain.RideStatus
	)
	err := s.coord.withRideLock(ctx, rideID, func() error {
		var err error
		ride, err = s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		if s.policy.StrictTransitions {
			if !ride.IsDriver(callerID) {
				return ErrNotRideDriver
			}
			if !ride.Status.CanTransitionTo(next) {
				return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, ride.Status, next)
			}
		}

		previous = ride.Status
		ride.Status = next
		ride.UpdatedAt = s.now().UTC()

		return s.rides.Update(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	s.coord.invalidate(ctx, rideID)
	if next == domain.RideStatusCompleted || next == domain.RideStatusCancelled {
		s.unindexOrigin(ctx, rideID)
	}
	s.notifier.NotifyRideStatusChanged(ctx, ride, previous, callerID)

	s.log.WithFields(logrus.Fields{
		"ride_id": rideID,
		"from":    previous,
		"to":      next,
	}).Info("ride status updated")

	return ride, nil
}

// UpdatePassengerStatus sets the status of one roster entry. The caller must
// be the ride's driver or the entry's passenger.
func (s *RideService) UpdatePassengerStatus(ctx context.Context, callerID, rideID, entryID, status string) (*domain.PassengerEntry, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	next := domain.PassengerStatus(status)
	if !next.Valid() {
		return nil, ErrInvalidPassengerStatus
	}

	var (
		ride    *domain.Ride
		updated *domain.PassengerEntry
	)
	err := s.coord.withRideLock(ctx, rideID, func() error {
		var err error
		ride, err = s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		entry, ok := ride.Roster().ByID(entryID)
		if !ok {
			return fmt.Errorf("passenger %s: %w", entryID, repository.ErrNotFound)
		}
		if !ride.IsDriver(callerID) && entry.UserID != callerID {
			return ErrNotRideParticipant
		}

		updated, err = s.ledger.SetPassengerStatus(ride, entryID, next)
		if err != nil {
			return err
		}

		ride.UpdatedAt = s.now().UTC()
		return s.rides.Update(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	s.coord.invalidate(ctx, rideID)
	s.notifier.NotifyPassengerStatusChanged(ctx, ride, updated, callerID)

	s.log.WithFields(logrus.Fields{
		"ride_id":         rideID,
		"entry_id":        entryID,
		"status":          next,
		"available_seats": ride.AvailableSeats,
	}).Info("passenger status updated")

	return updated, nil
}

func (s *RideService) indexOrigin(ctx context.Context, ride *domain.Ride) {
	if s.geo == nil {
		return
	}

	var err error
	if c := ride.From.Coordinates; c != nil {
		err = s.geo.AddRide(ctx, ride.ID, c.Lat, c.Lng)
	} else {
		err = s.geo.RemoveRide(ctx, ride.ID)
	}
	if err != nil {
		s.log.WithError(err).WithField("ride_id", ride.ID).Warn("failed to index ride origin")
	}
}

func (s *RideService) unindexOrigin(ctx context.Context, rideID string) {
	if s.geo == nil {
		return
	}
	if err := s.geo.RemoveRide(ctx, rideID); err != nil {
		s.log.WithError(err).WithField("ride_id", rideID).Warn("failed to remove ride origin")
	}
}

func validateCreateRide(req CreateRideRequest) error {
	var missing []string
	if strings.TrimSpace(req.Vehicle.Model) == "" {
		missing = append(missing, "vehicle.model")
	}
	if strings.TrimSpace(req.Vehicle.LicensePlate) == "" {
		missing = append(missing, "vehicle.licensePlate")
	}
	missing = append(missing, missingPlaceFields("from", req.From)...)
	missing = append(missing, missingPlaceFields("to", req.To)...)
	if req.DepartureTime.IsZero() {
		missing = append(missing, "departureTime")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if req.AvailableSeats < 1 {
		return ErrInvalidSeats
	}
	if req.PricePerSeat <= 0 {
		return ErrInvalidPrice
	}
	if req.EstimatedDuration != nil && *req.EstimatedDuration < 0 {
		return ErrInvalidDuration
	}
	if !validPlace(req.From) || !validPlace(req.To) {
		return ErrInvalidLocation
	}

	return nil
}

func validatePatch(p RidePatch) error {
	var missing []string
	if p.Vehicle != nil {
		if strings.TrimSpace(p.Vehicle.Model) == "" {
			missing = append(missing, "vehicle.model")
		}
		if strings.TrimSpace(p.Vehicle.LicensePlate) == "" {
			missing = append(missing, "vehicle.licensePlate")
		}
	}
	if p.From != nil {
		missing = append(missing, missingPlaceFields("from", *p.From)...)
	}
	if p.To != nil {
		missing = append(missing, missingPlaceFields("to", *p.To)...)
	}
	if p.DepartureTime != nil && p.DepartureTime.IsZero() {
		missing = append(missing, "departureTime")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if p.EstimatedDuration != nil && *p.EstimatedDuration < 0 {
		return ErrInvalidDuration
	}
	if p.AvailableSeats != nil && *p.AvailableSeats < 0 {
		return ErrInvalidSeats
	}
	if p.PricePerSeat != nil && *p.PricePerSeat <= 0 {
		return ErrInvalidPrice
	}
	if (p.From != nil && !validPlace(*p.From)) || (p.To != nil && !validPlace(*p.To)) {
		return ErrInvalidLocation
	}

	return nil
}

// applyPatch copies the set patch fields onto the ride. Patching available
// seats moves capacity with it so confirmed seats stay accounted for.
func applyPatch(ride *domain.Ride, p RidePatch) {
	if p.Vehicle != nil {
		ride.Vehicle = *p.Vehicle
	}
	if p.From != nil {
		ride.From = *p.From
	}
	if p.To != nil {
		ride.To = *p.To
	}
	if p.DepartureTime != nil {
		ride.DepartureTime = p.DepartureTime.UTC()
	}
	if p.EstimatedDuration != nil {
		d := *p.EstimatedDuration
		ride.EstimatedDuration = &d
	}
	if p.AvailableSeats != nil {
		ride.AvailableSeats = *p.AvailableSeats
		ride.TotalSeats = *p.AvailableSeats + ride.Roster().ConfirmedSeats()
	}
	if p.PricePerSeat != nil {
		ride.PricePerSeat = *p.PricePerSeat
	}
	if p.Rules != nil {
		ride.Rules = append([]string(nil), (*p.Rules)...)
	}
	if p.Notes != nil {
		ride.Notes = *p.Notes
	}
}

func missingPlaceFields(prefix string, p domain.Place) []string {
	var missing []string
	if strings.TrimSpace(p.City) == "" {
		missing = append(missing, prefix+".city")
	}
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, prefix+".address")
	}
	return missing
}

func validPlace(p domain.Place) bool {
	if p.Coordinates == nil {
		return true
	}
	return isValidLatitude(p.Coordinates.Lat) && isValidLongitude(p.Coordinates.Lng)
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

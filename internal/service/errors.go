package service

import "errors"

var (
	// ErrMissingCaller is returned when an operation has no authenticated caller.
	ErrMissingCaller = errors.New("authenticated caller required")

	// ErrMissingFields is returned when required request fields are absent.
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidSeats is returned when a seat count is below one.
	ErrInvalidSeats = errors.New("seats must be at least 1")

	// ErrInvalidPrice is returned when a price is not positive.
	ErrInvalidPrice = errors.New("price must be greater than 0")

	// ErrInvalidDuration is returned when the estimated duration is negative.
	ErrInvalidDuration = errors.New("estimated duration must not be negative")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRideStatus is returned for an unknown ride status.
	ErrInvalidRideStatus = errors.New("invalid ride status")

	// ErrInvalidBookingStatus is returned when a driver sets a status other than accepted or rejected.
	ErrInvalidBookingStatus = errors.New("invalid booking status")

	// ErrInvalidPassengerStatus is returned for an unknown passenger status.
	ErrInvalidPassengerStatus = errors.New("invalid passenger status")

	// ErrInvalidRole is returned for an unknown user role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidEmail is returned when the email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrPriceMismatch is returned when a booking price differs from seats times price per seat.
	ErrPriceMismatch = errors.New("price does not match seats times price per seat")

	// ErrNotRideDriver is returned when the caller does not drive the ride.
	ErrNotRideDriver = errors.New("not authorized: caller is not the ride driver")

	// ErrNotBookingDriver is returned when the caller is not the booking's driver.
	ErrNotBookingDriver = errors.New("not authorized: caller is not the booking driver")

	// ErrNotBookingPassenger is returned when the caller is not the booking's passenger.
	ErrNotBookingPassenger = errors.New("not authorized: caller is not the booking passenger")

	// ErrNotRideParticipant is returned when the caller is neither the driver nor the passenger entry's user.
	ErrNotRideParticipant = errors.New("not authorized: caller is not a participant of this ride")

	// ErrPassengerNotConfirmed is returned when paying without a confirmed passenger entry.
	ErrPassengerNotConfirmed = errors.New("passenger not found or not confirmed for this ride")

	// ErrAlreadyPaid is returned when the passenger entry is already paid.
	ErrAlreadyPaid = errors.New("payment already completed")

	// ErrRideHasConfirmedBookings is returned when deleting a ride with confirmed passengers.
	ErrRideHasConfirmedBookings = errors.New("cannot delete ride with confirmed bookings")

	// ErrInsufficientSeats is returned in strict seat mode when a confirmation exceeds available seats.
	ErrInsufficientSeats = errors.New("not enough available seats")

	// ErrInvalidTransition is returned in strict transition mode for an out-of-order ride status change.
	ErrInvalidTransition = errors.New("invalid ride status transition")

	// ErrRideBusy is returned when another seat change on the ride is in flight.
	ErrRideBusy = errors.New("ride is being updated, retry")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

package service

import "time"

// DefaultLockTTL bounds how long a ride seat lock may be held.
const DefaultLockTTL = 5 * time.Second

// Policy selects between the permissive booking rules and the strict ones.
// The zero value is fully permissive: seats may be oversold, ride status may
// be set to any value and the client supplied booking price is trusted.
type Policy struct {
	// StrictSeats rejects confirmations that exceed the ride's available
	// seats and serializes seat changes per ride.
	StrictSeats bool

	// StrictTransitions limits ride status changes to the driver and to
	// scheduled -> started -> completed or scheduled -> cancelled.
	StrictTransitions bool

	// VerifyPrice rejects bookings whose price is not seats * pricePerSeat.
	VerifyPrice bool

	// LockTTL is the seat lock expiry; DefaultLockTTL when zero.
	LockTTL time.Duration
}

func (p Policy) lockTTL() time.Duration {
	if p.LockTTL <= 0 {
		return DefaultLockTTL
	}
	return p.LockTTL
}

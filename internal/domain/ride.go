package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusScheduled RideStatus = "scheduled"
	RideStatusStarted   RideStatus = "started"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// rideStatusInProgress is accepted on input as an alias of RideStatusStarted.
const rideStatusInProgress = "in-progress"

// ParseRideStatus normalizes a client supplied ride status.
func ParseRideStatus(s string) (RideStatus, bool) {
	switch s {
	case string(RideStatusScheduled), string(RideStatusStarted),
		string(RideStatusCompleted), string(RideStatusCancelled):
		return RideStatus(s), true
	case rideStatusInProgress:
		return RideStatusStarted, true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether moving from s to next follows the normal
// ride lifecycle: scheduled -> started -> completed, scheduled -> cancelled.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	switch s {
	case RideStatusScheduled:
		return next == RideStatusStarted || next == RideStatusCancelled
	case RideStatusStarted:
		return next == RideStatusCompleted
	default:
		return false
	}
}

// Coordinates is an optional geographic position.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Place is one end of a ride route.
type Place struct {
	City        string
	Address     string
	Coordinates *Coordinates
}

// VehicleSnapshot is a copy of the driver's vehicle taken when the ride is
// offered. It does not follow later edits of the vehicle record.
type VehicleSnapshot struct {
	Model        string
	Color        string
	LicensePlate string
}

// Ride is a ride offer posted by a driver.
type Ride struct {
	ID                string
	DriverID          string
	Vehicle           VehicleSnapshot
	From              Place
	To                Place
	DepartureTime     time.Time
	EstimatedDuration *int // minutes
	TotalSeats        int  // capacity; AvailableSeats + confirmed seats
	AvailableSeats    int
	PricePerSeat      float64
	Status            RideStatus
	Passengers        *Passengers
	Rules             []string
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Roster returns the passenger roster, allocating an empty one if needed.
func (r *Ride) Roster() *Passengers {
	if r.Passengers == nil {
		r.Passengers = NewPassengers(nil)
	}
	return r.Passengers
}

// IsDriver reports whether userID owns the ride.
func (r *Ride) IsDriver(userID string) bool {
	return userID != "" && r.DriverID == userID
}

// Clone returns a deep copy of the ride.
func (r *Ride) Clone() *Ride {
	c := *r
	if r.EstimatedDuration != nil {
		d := *r.EstimatedDuration
		c.EstimatedDuration = &d
	}
	c.From = r.From.clone()
	c.To = r.To.clone()
	c.Rules = append([]string(nil), r.Rules...)
	if r.Passengers != nil {
		c.Passengers = NewPassengers(r.Passengers.All())
	}
	return &c
}

func (p Place) clone() Place {
	if p.Coordinates != nil {
		coords := *p.Coordinates
		p.Coordinates = &coords
	}
	return p
}

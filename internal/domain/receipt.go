package domain

import "time"

// Receipt records a passenger's payment for their seats on a ride.
type Receipt struct {
	ID           string
	RideID       string
	PassengerID  string
	DriverID     string
	From         string
	To           string
	Seats        int
	PricePerSeat float64
	Amount       float64
	PaidAt       time.Time
}

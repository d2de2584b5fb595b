package domain

import "time"

// BookingStatus represents the current status of a booking request.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// DefaultSpecialRequests is stored when the passenger leaves the field empty.
const DefaultSpecialRequests = "none"

// Booking is a passenger's request to join a ride.
type Booking struct {
	ID              string
	RideID          string
	PassengerID     string
	DriverID        string // copied from the ride when the booking is made
	Seats           int
	PickupLocation  string
	DropoffLocation string
	Price           float64
	SpecialRequests string
	Status          BookingStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

package handler

import (
	"time"

	"sharewheels/internal/domain"
)

// CoordinatesBody is a latitude/longitude pair.
type CoordinatesBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceBody is a ride origin or destination.
type PlaceBody struct {
	City        string           `json:"city"`
	Address     string           `json:"address"`
	Coordinates *CoordinatesBody `json:"coordinates,omitempty"`
}

// VehicleBody describes the car used for a ride.
type VehicleBody struct {
	Model        string `json:"model"`
	Color        string `json:"color"`
	LicensePlate string `json:"licensePlate"`
}

// PickupBody is where a passenger is picked up.
type PickupBody struct {
	Address     string           `json:"address"`
	Coordinates *CoordinatesBody `json:"coordinates,omitempty"`
}

// PassengerResponse is a passenger entry on a ride.
type PassengerResponse struct {
	ID             string     `json:"id"`
	User           string     `json:"user"`
	Seats          int        `json:"seats"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"paymentStatus"`
	PickupLocation PickupBody `json:"pickupLocation"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                string              `json:"id"`
	Driver            string              `json:"driver"`
	Vehicle           VehicleBody         `json:"vehicle"`
	From              PlaceBody           `json:"from"`
	To                PlaceBody           `json:"to"`
	DepartureTime     time.Time           `json:"departureTime"`
	EstimatedDuration *int                `json:"estimatedDuration,omitempty"`
	TotalSeats        int                 `json:"totalSeats"`
	AvailableSeats    int                 `json:"availableSeats"`
	PricePerSeat      float64             `json:"pricePerSeat"`
	Status            string              `json:"status"`
	Passengers        []PassengerResponse `json:"passengers"`
	Rules             []string            `json:"rules"`
	Notes             string              `json:"notes,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID              string    `json:"id"`
	Ride            string    `json:"ride"`
	Passenger       string    `json:"passenger"`
	Driver          string    `json:"driver"`
	Seats           int       `json:"seats"`
	PickupLocation  string    `json:"pickupLocation"`
	DropoffLocation string    `json:"dropoffLocation"`
	Price           float64   `json:"price"`
	SpecialRequests string    `json:"specialRequests"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ReceiptResponse is returned after a successful payment.
type ReceiptResponse struct {
	ID           string    `json:"id"`
	Ride         string    `json:"ride"`
	Passenger    string    `json:"passenger"`
	Driver       string    `json:"driver"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Seats        int       `json:"seats"`
	PricePerSeat float64   `json:"pricePerSeat"`
	Amount       float64   `json:"amount"`
	PaidAt       time.Time `json:"paidAt"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	Rating        float64   `json:"rating"`
	TotalRides    int       `json:"totalRides"`
	TotalEarnings float64   `json:"totalEarnings"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toCoordinates(c *CoordinatesBody) *domain.Coordinates {
	if c == nil {
		return nil
	}
	return &domain.Coordinates{Lat: c.Lat, Lng: c.Lng}
}

func fromCoordinates(c *domain.Coordinates) *CoordinatesBody {
	if c == nil {
		return nil
	}
	return &CoordinatesBody{Lat: c.Lat, Lng: c.Lng}
}

func (p PlaceBody) domain() domain.Place {
	return domain.Place{
		City:        p.City,
		Address:     p.Address,
		Coordinates: toCoordinates(p.Coordinates),
	}
}

func (v VehicleBody) domain() domain.VehicleSnapshot {
	return domain.VehicleSnapshot{
		Model:        v.Model,
		Color:        v.Color,
		LicensePlate: v.LicensePlate,
	}
}

func newPlaceBody(p domain.Place) PlaceBody {
	return PlaceBody{
		City:        p.City,
		Address:     p.Address,
		Coordinates: fromCoordinates(p.Coordinates),
	}
}

func newRideResponse(r *domain.Ride) RideResponse {
	entries := r.Roster().All()
	passengers := make([]PassengerResponse, 0, len(entries))
	for _, e := range entries {
		passengers = append(passengers, PassengerResponse{
			ID:            e.ID,
			User:          e.UserID,
			Seats:         e.Seats,
			Status:        string(e.Status),
			PaymentStatus: string(e.PaymentStatus),
			PickupLocation: PickupBody{
				Address:     e.Pickup.Address,
				Coordinates: fromCoordinates(e.Pickup.Coordinates),
			},
		})
	}

	rules := r.Rules
	if rules == nil {
		rules = []string{}
	}

	return RideResponse{
		ID:     r.ID,
		Driver: r.DriverID,
		Vehicle: VehicleBody{
			Model:        r.Vehicle.Model,
			Color:        r.Vehicle.Color,
			LicensePlate: r.Vehicle.LicensePlate,
		},
		From:              newPlaceBody(r.From),
		To:                newPlaceBody(r.To),
		DepartureTime:     r.DepartureTime,
		EstimatedDuration: r.EstimatedDuration,
		TotalSeats:        r.TotalSeats,
		AvailableSeats:    r.AvailableSeats,
		PricePerSeat:      r.PricePerSeat,
		Status:            string(r.Status),
		Passengers:        passengers,
		Rules:             rules,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func newRideResponses(rides []*domain.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, newRideResponse(r))
	}
	return out
}

func newBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		Ride:            b.RideID,
		Passenger:       b.PassengerID,
		Driver:          b.DriverID,
		Seats:           b.Seats,
		PickupLocation:  b.PickupLocation,
		DropoffLocation: b.DropoffLocation,
		Price:           b.Price,
		SpecialRequests: b.SpecialRequests,
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func newReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:           r.ID,
		Ride:         r.RideID,
		Passenger:    r.PassengerID,
		Driver:       r.DriverID,
		From:         r.From,
		To:           r.To,
		Seats:        r.Seats,
		PricePerSeat: r.PricePerSeat,
		Amount:       r.Amount,
		PaidAt:       r.PaidAt,
	}
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Role:          string(u.Role),
		Rating:        u.Rating,
		TotalRides:    u.TotalRides,
		TotalEarnings: u.TotalEarnings,
		CreatedAt:     u.CreatedAt,
	}
}

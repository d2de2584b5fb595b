package mongodb

import (
	"time"

	"sharewheels/internal/domain"
)

type coordinatesDoc struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type placeDoc struct {
	City        string          `bson:"city"`
	Address     string          `bson:"address"`
	Coordinates *coordinatesDoc `bson:"coordinates,omitempty"`
}

type vehicleDoc struct {
	Model        string `bson:"model"`
	Color        string `bson:"color,omitempty"`
	LicensePlate string `bson:"license_plate"`
}

type passengerDoc struct {
	ID             string          `bson:"_id"`
	User           string          `bson:"user"`
	Seats          int             `bson:"seats"`
	Status         string          `bson:"status"`
	PaymentStatus  string          `bson:"payment_status"`
	PickupAddress  string          `bson:"pickup_address,omitempty"`
	PickupLocation *coordinatesDoc `bson:"pickup_coordinates,omitempty"`
}

type rideDoc struct {
	ID                string         `bson:"_id"`
	Driver            string         `bson:"driver"`
	Vehicle           vehicleDoc     `bson:"vehicle"`
	From              placeDoc       `bson:"from"`
	To                placeDoc       `bson:"to"`
	DepartureTime     time.Time      `bson:"departure_time"`
	EstimatedDuration *int           `bson:"estimated_duration,omitempty"`
	TotalSeats        int            `bson:"total_seats"`
	AvailableSeats    int            `bson:"available_seats"`
	PricePerSeat      float64        `bson:"price_per_seat"`
	Status            string         `bson:"status"`
	Passengers        []passengerDoc `bson:"passengers"`
	Rules             []string       `bson:"rules"`
	Notes             string         `bson:"notes,omitempty"`
	CreatedAt         time.Time      `bson:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at"`
}

type bookingDoc struct {
	ID              string    `bson:"_id"`
	Ride            string    `bson:"ride"`
	Passenger       string    `bson:"passenger"`
	Driver          string    `bson:"driver"`
	Seats           int       `bson:"seats"`
	PickupLocation  string    `bson:"pickup_location"`
	DropoffLocation string    `bson:"dropoff_location"`
	Price           float64   `bson:"price"`
	SpecialRequests string    `bson:"special_requests"`
	Status          string    `bson:"status"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

type userDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Email         string    `bson:"email"`
	Phone         string    `bson:"phone,omitempty"`
	Role          string    `bson:"role"`
	Rating        float64   `bson:"rating"`
	TotalRides    int       `bson:"total_rides"`
	TotalEarnings float64   `bson:"total_earnings"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toCoordinatesDoc(c *domain.Coordinates) *coordinatesDoc {
	if c == nil {
		return nil
	}
	return &coordinatesDoc{Lat: c.Lat, Lng: c.Lng}
}

func (c *coordinatesDoc) domain() *domain.Coordinates {
	if c == nil {
		return nil
	}
	return &domain.Coordinates{Lat: c.Lat, Lng: c.Lng}
}

func toPlaceDoc(p domain.Place) placeDoc {
	return placeDoc{City: p.City, Address: p.Address, Coordinates: toCoordinatesDoc(p.Coordinates)}
}

func (p placeDoc) domain() domain.Place {
	return domain.Place{City: p.City, Address: p.Address, Coordinates: p.Coordinates.domain()}
}

func toRideDoc(r *domain.Ride) rideDoc {
	entries := r.Roster().All()
	passengers := make([]passengerDoc, 0, len(entries))
	for _, e := range entries {
		passengers = append(passengers, passengerDoc{
			ID:             e.ID,
			User:           e.UserID,
			Seats:          e.Seats,
			Status:         string(e.Status),
			PaymentStatus:  string(e.PaymentStatus),
			PickupAddress:  e.Pickup.Address,
			PickupLocation: toCoordinatesDoc(e.Pickup.Coordinates),
		})
	}

	rules := r.Rules
	if rules == nil {
		rules = []string{}
	}

	return rideDoc{
		ID:     r.ID,
		Driver: r.DriverID,
		Vehicle: vehicleDoc{
			Model:        r.Vehicle.Model,
			Color:        r.Vehicle.Color,
			LicensePlate: r.Vehicle.LicensePlate,
		},
		From:              toPlaceDoc(r.From),
		To:                toPlaceDoc(r.To),
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

func (d rideDoc) domain() *domain.Ride {
	entries := make([]domain.PassengerEntry, 0, len(d.Passengers))
	for _, p := range d.Passengers {
		entries = append(entries, domain.PassengerEntry{
			ID:            p.ID,
			UserID:        p.User,
			Seats:         p.Seats,
			Status:        domain.PassengerStatus(p.Status),
			PaymentStatus: domain.PaymentStatus(p.PaymentStatus),
			Pickup: domain.PickupLocation{
				Address:     p.PickupAddress,
				Coordinates: p.PickupLocation.domain(),
			},
		})
	}

	return &domain.Ride{
		ID:       d.ID,
		DriverID: d.Driver,
		Vehicle: domain.VehicleSnapshot{
			Model:        d.Vehicle.Model,
			Color:        d.Vehicle.Color,
			LicensePlate: d.Vehicle.LicensePlate,
		},
		From:              d.From.domain(),
		To:                d.To.domain(),
		DepartureTime:     d.DepartureTime,
		EstimatedDuration: d.EstimatedDuration,
		TotalSeats:        d.TotalSeats,
		AvailableSeats:    d.AvailableSeats,
		PricePerSeat:      d.PricePerSeat,
		Status:            domain.RideStatus(d.Status),
		Passengers:        domain.NewPassengers(entries),
		Rules:             d.Rules,
		Notes:             d.Notes,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toBookingDoc(b *domain.Booking) bookingDoc {
	return bookingDoc{
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

func (d bookingDoc) domain() *domain.Booking {
	return &domain.Booking{
		ID:              d.ID,
		RideID:          d.Ride,
		PassengerID:     d.Passenger,
		DriverID:        d.Driver,
		Seats:           d.Seats,
		PickupLocation:  d.PickupLocation,
		DropoffLocation: d.DropoffLocation,
		Price:           d.Price,
		SpecialRequests: d.SpecialRequests,
		Status:          domain.BookingStatus(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toUserDoc(u *domain.User) userDoc {
	return userDoc{
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

func (d userDoc) domain() *domain.User {
	return &domain.User{
		ID:            d.ID,
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.Phone,
		Role:          domain.UserRole(d.Role),
		Rating:        d.Rating,
		TotalRides:    d.TotalRides,
		TotalEarnings: d.TotalEarnings,
		CreatedAt:     d.CreatedAt,
	}
}

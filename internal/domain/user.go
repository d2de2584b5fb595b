package domain

import "time"

// UserRole is the role a user signed up with.
type UserRole string

const (
	UserRoleDriver    UserRole = "driver"
	UserRolePassenger UserRole = "passenger"
)

// User is a driver or passenger account.
type User struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	Role          UserRole
	Rating        float64
	TotalRides    int
	TotalEarnings float64
	CreatedAt     time.Time
}

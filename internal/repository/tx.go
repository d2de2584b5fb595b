package repository

import "context"

// Stores groups the repositories bound to one unit of work.
type Stores struct {
	Rides    RideRepository
	Bookings BookingRepository
	Users    UserRepository
}

// TxManager runs fn with stores that commit together. If fn returns an
// error nothing fn wrote is kept. fn must use the context it is given for
// every store call.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/logger"
	"sharewheels/internal/redis"
	"sharewheels/internal/repository"
)

// Deps holds the collaborators shared by the booking workflow services.
// Cache, Geo and Locks are optional.
type Deps struct {
	Rides    repository.RideRepository
	Bookings repository.BookingRepository
	Users    repository.UserRepository
	Tx       repository.TxManager
	Cache    redis.RideCacheInterface
	Geo      redis.GeoIndexInterface
	Locks    redis.LockStoreInterface
	Notifier *NotificationService
	Receipts *ReceiptService
	Policy   Policy
	Log      logrus.FieldLogger
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Notifier == nil {
		d.Notifier = NewNotificationService(nil, d.Log)
	}
	if d.Receipts == nil {
		d.Receipts = NewReceiptService()
	}
	return d
}

// rideCoordinator serializes ride writes in strict seat mode and keeps the
// ride cache coherent with the store.
type rideCoordinator struct {
	cache  redis.RideCacheInterface
	locks  redis.LockStoreInterface
	policy Policy
	log    logrus.FieldLogger
}

func newRideCoordinator(d Deps) rideCoordinator {
	return rideCoordinator{cache: d.Cache, locks: d.Locks, policy: d.Policy, log: d.Log}
}

// withRideLock runs fn while holding the ride's seat lock. Without strict
// seats fn runs unlocked, so concurrent accepts may race and oversell.
func (c rideCoordinator) withRideLock(ctx context.Context, rideID string, fn func() error) error {
	if !c.policy.StrictSeats || c.locks == nil {
		return fn()
	}

	acquired, err := c.locks.AcquireRideLock(ctx, rideID, c.policy.lockTTL())
	if err != nil {
		return fmt.Errorf("failed to acquire ride lock: %w", err)
	}
	if !acquired {
		return ErrRideBusy
	}

	defer func() {
		if err := c.locks.ReleaseRideLock(context.WithoutCancel(ctx), rideID); err != nil {
			c.log.WithError(err).WithField("ride_id", rideID).Warn("failed to release ride lock")
		}
	}()

	return fn()
}

// readThrough returns the cached ride, loading and caching it on a miss.
func (c rideCoordinator) readThrough(ctx context.Context, rides repository.RideRepository, rideID string) (*domain.Ride, error) {
	if c.cache != nil {
		ride, err := c.cache.GetRide(ctx, rideID)
		if err != nil {
			c.log.WithError(err).WithField("ride_id", rideID).Warn("ride cache read failed")
		} else if ride != nil {
			return ride, nil
		}
	}

	ride, err := rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetRide(ctx, ride); err != nil {
			c.log.WithError(err).WithField("ride_id", rideID).Warn("ride cache write failed")
		}
	}
	return ride, nil
}

func (c rideCoordinator) invalidate(ctx context.Context, rideID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateRide(ctx, rideID); err != nil {
		c.log.WithError(err).WithField("ride_id", rideID).Warn("ride cache invalidation failed")
	}
}

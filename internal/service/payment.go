package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/repository"
)

// PaymentService records passenger payments. There is no payment gateway;
// paying flips the passenger's payment status and credits the driver.
type PaymentService struct {
	tx       repository.TxManager
	ledger   *SeatLedger
	receipts *ReceiptService
	notifier *NotificationService
	coord    rideCoordinator
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(deps Deps) *PaymentService {
	deps = deps.withDefaults()
	return &PaymentService{
		tx:       deps.Tx,
		ledger:   NewSeatLedger(deps.Policy),
		receipts: deps.Receipts,
		notifier: deps.Notifier,
		coord:    newRideCoordinator(deps),
		log:      deps.Log,
		now:      time.Now,
	}
}

// PayForRide marks the caller's confirmed seats on the ride as paid and adds
// seats * pricePerSeat to the driver's earnings.
func (s *PaymentService) PayForRide(ctx context.Context, callerID, rideID string) (*domain.Receipt, error) {
	if callerID == "" {
		return nil, ErrMissingCaller
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	var receipt *domain.Receipt
	err := s.coord.withRideLock(ctx, rideID, func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, stores repository.Stores) error {
			ride, err := stores.Rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}

			entry, err := s.ledger.MarkPaid(ride, callerID)
			if err != nil {
				return err
			}

			paidAt := s.now().UTC()
			ride.UpdatedAt = paidAt
			if err := stores.Rides.Update(ctx, ride); err != nil {
				return err
			}

			receipt = s.receipts.GenerateReceipt(ride, entry, paidAt)

			err = stores.Users.AddEarnings(ctx, ride.DriverID, receipt.Amount)
			if errors.Is(err, repository.ErrNotFound) {
				s.log.WithFields(logrus.Fields{
					"ride_id":   rideID,
					"driver_id": ride.DriverID,
				}).Warn("driver not found, earnings not credited")
				return nil
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.coord.invalidate(ctx, rideID)
	s.notifier.NotifyPaymentCompleted(ctx, receipt)

	s.log.WithFields(logrus.Fields{
		"ride_id":      rideID,
		"passenger_id": callerID,
		"driver_id":    receipt.DriverID,
		"amount":       receipt.Amount,
	}).Info("payment completed")

	return receipt, nil
}

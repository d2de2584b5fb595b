package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"sharewheels/internal/domain"
)

// ReceiptService builds payment receipts.
type ReceiptService struct{}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService() *ReceiptService {
	return &ReceiptService{}
}

// GenerateReceipt builds the receipt for a paid passenger entry.
func (s *ReceiptService) GenerateReceipt(ride *domain.Ride, entry *domain.PassengerEntry, paidAt time.Time) *domain.Receipt {
	return &domain.Receipt{
		ID:           uuid.New().String(),
		RideID:       ride.ID,
		PassengerID:  entry.UserID,
		DriverID:     ride.DriverID,
		From:         ride.From.City,
		To:           ride.To.City,
		Seats:        entry.Seats,
		PricePerSeat: ride.PricePerSeat,
		Amount:       fare(entry.Seats, ride.PricePerSeat),
		PaidAt:       paidAt,
	}
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	return `
=====================================
        SHAREWHEELS RECEIPT
=====================================
Receipt ID: ` + receipt.ID + `
Ride ID:    ` + receipt.RideID + `
Date:       ` + receipt.PaidAt.Format("Jan 02, 2006 3:04 PM") + `

RIDE
-------------------------------------
From:   ` + receipt.From + `
To:     ` + receipt.To + `
Seats:  ` + fmt.Sprintf("%d", receipt.Seats) + ` x ` + formatFloat(receipt.PricePerSeat) + `
-------------------------------------
TOTAL:  ` + formatFloat(receipt.Amount) + `

=====================================
`
}

// fare is what a passenger owes the driver for seats.
func fare(seats int, pricePerSeat float64) float64 {
	return float64(seats) * pricePerSeat
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

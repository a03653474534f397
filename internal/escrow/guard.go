package escrow

import (
	"errors"
	"fmt"

	"github.com/paystream/settlement-api/pkg/errs"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Guard verifies that the funds backing a shipment are actually held
// before a release may post to the ledger. Implementations abstract
// the payment provider; the settlement core only depends on this seam.
type Guard interface {
	AssertAvailable(tx *gorm.DB, shipmentID string) error
}

// PaymentGuard is the default Guard backed by the escrow payment table.
// Funds are releasable only when collected and not under dispute.
type PaymentGuard struct{}

func NewPaymentGuard() *PaymentGuard {
	return &PaymentGuard{}
}

func (g *PaymentGuard) AssertAvailable(tx *gorm.DB, shipmentID string) error {
	var payment Payment
	err := tx.Where("shipment_id = ?", shipmentID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug().
			Str("shipment_id", shipmentID).
			Msg("no escrow payment recorded for shipment")
		return errs.ErrEscrowUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to fetch escrow payment: %w", err)
	}

	if payment.Status != PaymentStatusCollected || payment.Disputed {
		log.Debug().
			Str("shipment_id", shipmentID).
			Str("payment_status", string(payment.Status)).
			Bool("disputed", payment.Disputed).
			Msg("escrow funds not releasable")
		return errs.ErrEscrowUnavailable
	}

	return nil
}

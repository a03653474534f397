package settlement

import (
	"fmt"
	"time"

	"github.com/paystream/settlement-api/internal/ledger"
	"github.com/paystream/settlement-api/internal/types"
	"github.com/paystream/settlement-api/pkg/errs"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	// ScopeEarningRelease tags idempotency records created by the
	// release procedure.
	ScopeEarningRelease = "EARNING_RELEASE"

	// lockStaleness is how long a STARTED idempotency record is honored
	// before a later attempt may take it over. Must exceed the worst
	// case release transaction duration, or legitimate in-flight work
	// gets taken over.
	lockStaleness = 10 * time.Minute
)

// ReleaseKey derives the deterministic idempotency key for releasing
// one earning.
func ReleaseKey(earningID string) string {
	return ScopeEarningRelease + ":earning:" + earningID
}

// Release moves one earning's net amount from the platform's escrow
// holding into the seller's withdrawable balance, posting the balanced
// ledger group and flipping the earning to RELEASED, all in a single
// transaction. Safe to call concurrently and repeatedly: at most one
// invocation has an effect, later ones no-op.
func (s *Service) Release(earningID string) error {
	logger := log.With().
		Str("earning_id", earningID).
		Str("service", "settlement").
		Logger()

	key := ReleaseKey(earningID)

	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		alreadyDone, err := s.guard.AcquireOrCheck(tx, key, ScopeEarningRelease, s.platformCompanyID, lockStaleness)
		if err != nil {
			return err
		}
		if alreadyDone {
			logger.Info().Msg("earning already released, skipping")
			return nil
		}

		earning, err := s.db.GetEarningTx(tx, earningID)
		if err != nil {
			return err
		}
		if earning == nil {
			return errs.ErrNotFound
		}

		if earning.Status == types.EarningStatusReleased {
			// The earning was finalized by another path after the lock
			// record was created; close out the record and no-op.
			if err := s.guard.MarkSucceeded(tx, key); err != nil {
				return err
			}
			logger.Info().Msg("earning already in released status, marking record succeeded")
			return nil
		}

		if err := earning.Status.CanTransitionTo(types.EarningStatusReleased); err != nil {
			return &errs.ValidationError{Reason: err.Error()}
		}
		if earning.Archived {
			return &errs.ValidationError{Reason: "earning is archived"}
		}

		now := time.Now()
		if earning.ExpectedClearDate == nil || earning.ExpectedClearDate.After(now) {
			return &errs.ValidationError{Reason: "earning is not yet due for release"}
		}

		if err := s.escrowGuard.AssertAvailable(tx, earning.ShipmentID); err != nil {
			return err
		}

		posting := ledger.ReleasePosting{
			Gross:           earning.GrossAmount,
			Commission:      earning.CommissionAmount,
			Chargeback:      earning.ChargebackAmount,
			Net:             earning.NetAmount,
			Currency:        earning.Currency,
			RefType:         "shipment",
			RefID:           earning.ShipmentID,
			SellerCompanyID: earning.SellerCompanyID,
			Description:     fmt.Sprintf("Release of earning %s for shipment %s", earning.EarningID, earning.ShipmentID),
		}
		if err := s.ledger.PostRelease(tx, key, posting); err != nil {
			return err
		}

		if err := s.db.MarkEarningReleased(tx, earningID, now); err != nil {
			return err
		}

		if err := s.guard.MarkSucceeded(tx, key); err != nil {
			return err
		}

		logger.Info().
			Str("seller_company_id", earning.SellerCompanyID).
			Str("net_amount", earning.NetAmount.String()).
			Str("currency", earning.Currency).
			Msg("earning released")

		return nil
	})
}

package idempotency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paystream/settlement-api/pkg/errs"
	"gorm.io/gorm"
)

// Guard provides at-most-once execution for keyed operations. All
// methods run on the caller's transactional handle so that the lock
// record commits or rolls back together with the guarded effects.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// AcquireOrCheck attempts to take the lock for key inside tx.
//
// Returns alreadyDone=true when a previous attempt completed; the
// caller must no-op and report success. Returns errs.ErrAlreadyRunning
// when another attempt holds a fresh STARTED record, or when the race
// to create the record is lost to a concurrent transaction. A STARTED
// record older than staleness is presumed abandoned and taken over.
func (g *Guard) AcquireOrCheck(tx *gorm.DB, key, scope, companyID string, staleness time.Duration) (bool, error) {
	var record Record
	err := tx.Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = Record{
			Key:       key,
			Scope:     scope,
			CompanyID: companyID,
			Status:    StatusStarted,
			LockedAt:  time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				// Lost the create race to a concurrent transaction.
				return false, errs.ErrAlreadyRunning
			}
			return false, fmt.Errorf("failed to create idempotency record: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch idempotency record: %w", err)
	}

	if record.Status == StatusSucceeded {
		return true, nil
	}

	if time.Since(record.LockedAt) < staleness {
		return false, errs.ErrAlreadyRunning
	}

	// Stale STARTED record: the previous holder presumably crashed
	// before committing. Take over the lock.
	if err := tx.Model(&Record{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"locked_at":  time.Now(),
			"updated_at": time.Now(),
		}).Error; err != nil {
		return false, fmt.Errorf("failed to take over stale idempotency record: %w", err)
	}

	return false, nil
}

// MarkSucceeded transitions the record for key from STARTED to
// SUCCEEDED. Must be called in the same transaction as the guarded
// effects so they commit together or not at all.
func (g *Guard) MarkSucceeded(tx *gorm.DB, key string) error {
	now := time.Now()
	result := tx.Model(&Record{}).
		Where("key = ? AND status = ?", key, StatusStarted).
		Updates(map[string]interface{}{
			"status":       StatusSucceeded,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark idempotency record succeeded: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no started idempotency record for key %s", key)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

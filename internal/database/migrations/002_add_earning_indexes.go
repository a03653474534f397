package migrations

import (
	"github.com/paystream/settlement-api/internal/types"
	"gorm.io/gorm"
)

// AddEarningIndexes creates the earnings table and the composite index
// backing the release worker's eligibility scan
func AddEarningIndexes(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Earning{}); err != nil {
		return err
	}

	indexes := []string{
		// Composite index matching the releasable-earnings query:
		// status filter + due date ordering
		`CREATE INDEX IF NOT EXISTS idx_earnings_status_clear_date
		 ON earnings(status, expected_clear_date)`,

		// Composite index for seller earning listings
		`CREATE INDEX IF NOT EXISTS idx_earnings_seller_created_at
		 ON earnings(seller_company_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}

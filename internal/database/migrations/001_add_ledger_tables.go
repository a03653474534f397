package migrations

import (
	"github.com/paystream/settlement-api/internal/ledger"
	"gorm.io/gorm"
)

// AddLedgerTables creates the ledger tables and required indexes
func AddLedgerTables(db *gorm.DB) error {
	if err := db.AutoMigrate(&ledger.Account{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ledger.Group{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ledger.Entry{}); err != nil {
		return err
	}

	// Add indexes for better query performance
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for group entry queries by currency
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_group_currency
		 ON ledger_entries(group_id, currency)`,

		// Composite index for account statements
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created_at
		 ON ledger_entries(account_id, created_at)`,

		// Index for group type filtering
		`CREATE INDEX IF NOT EXISTS idx_ledger_groups_group_type
		 ON ledger_groups(group_type)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}

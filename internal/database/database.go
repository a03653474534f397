package database

import (
	"fmt"
	"os"

	"github.com/paystream/settlement-api/internal/database/migrations"
	"github.com/paystream/settlement-api/internal/escrow"
	"github.com/paystream/settlement-api/internal/idempotency"
	"github.com/paystream/settlement-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "settlement.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddLedgerTables(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddEarningIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Company{},
		&idempotency.Record{},
		&escrow.Payment{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

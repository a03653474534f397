package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetAccount fetches the account for a company in a currency. Returns
// nil without error when no account exists.
func (d *Database) GetAccount(tx *gorm.DB, companyID, currency string) (*Account, error) {
	var account Account
	err := tx.Where("company_id = ? AND currency = ?", companyID, currency).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger account: %w", err)
	}
	return &account, nil
}

// GetOrCreateAccount returns the account for a company in a currency,
// creating a zero-balance one if absent. A concurrent create losing the
// unique-index race falls back to re-fetching the winner's row.
func (d *Database) GetOrCreateAccount(tx *gorm.DB, companyID, currency string) (*Account, error) {
	account, err := d.GetAccount(tx, companyID, currency)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &Account{
		AccountID:        uuid.New().String(),
		CompanyID:        companyID,
		Currency:         currency,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
	}
	if err := tx.Create(account).Error; err != nil {
		existing, fetchErr := d.GetAccount(tx, companyID, currency)
		if fetchErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create ledger account: %w", err)
	}
	return account, nil
}

// GetGroupByKey fetches the group for an idempotency key. Returns nil
// without error when no group exists.
func (d *Database) GetGroupByKey(tx *gorm.DB, idempotencyKey string) (*Group, error) {
	var group Group
	err := tx.Where("idempotency_key = ?", idempotencyKey).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger group: %w", err)
	}
	return &group, nil
}

func (d *Database) CreateGroup(tx *gorm.DB, group *Group) error {
	return tx.Create(group).Error
}

func (d *Database) CreateEntries(tx *gorm.DB, entries []Entry) error {
	return tx.Create(&entries).Error
}

// IncrementAvailableBalance adds amount to the account's available
// balance with a single atomic UPDATE, avoiding read-modify-write lost
// updates under concurrent releases for the same seller.
func (d *Database) IncrementAvailableBalance(tx *gorm.DB, accountID string, amount decimal.Decimal) error {
	result := tx.Model(&Account{}).
		Where("account_id = ?", accountID).
		UpdateColumn("available_balance", gorm.Expr("available_balance + ?", amount))
	if result.Error != nil {
		return fmt.Errorf("failed to increment account balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ledger account %s not found for balance update", accountID)
	}
	return nil
}

// GetGroupEntries returns all entries belonging to a group.
func (d *Database) GetGroupEntries(groupID string) ([]Entry, error) {
	var entries []Entry
	if err := d.db.Where("group_id = ?", groupID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListGroupsByCompany returns groups owned by a company, newest first.
func (d *Database) ListGroupsByCompany(companyID string) ([]Group, error) {
	var groups []Group
	if err := d.db.Where("company_id = ?", companyID).Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

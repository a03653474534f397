package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/paystream/settlement-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateEarning(earning *types.Earning) error {
	return d.db.Create(earning).Error
}

func (d *Database) CreateCompany(company *types.Company) error {
	return d.db.Create(company).Error
}

// GetEarning fetches an earning outside any transaction. Returns nil
// without error when not found.
func (d *Database) GetEarning(earningID string) (*types.Earning, error) {
	return d.getEarning(d.db, earningID)
}

// GetEarningTx re-fetches an earning inside the caller's transaction,
// defending against stale reads taken before the transaction opened.
func (d *Database) GetEarningTx(tx *gorm.DB, earningID string) (*types.Earning, error) {
	return d.getEarning(tx, earningID)
}

func (d *Database) getEarning(tx *gorm.DB, earningID string) (*types.Earning, error) {
	var earning types.Earning
	err := tx.Where("earning_id = ?", earningID).First(&earning).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earning: %w", err)
	}
	return &earning, nil
}

func (d *Database) GetEarningsBySeller(sellerCompanyID string) ([]types.Earning, error) {
	var earnings []types.Earning
	if err := d.db.Where("seller_company_id = ?", sellerCompanyID).
		Order("created_at DESC").
		Find(&earnings).Error; err != nil {
		return nil, err
	}
	return earnings, nil
}

// ListReleasableEarnings returns one page of earnings eligible for
// release at now: PENDING or CLEARED, due, and not archived, ordered by
// expected clear date ascending.
func (d *Database) ListReleasableEarnings(now time.Time, offset, limit int) ([]types.Earning, error) {
	var earnings []types.Earning
	err := d.db.
		Where("status IN ?", []types.EarningStatus{types.EarningStatusPending, types.EarningStatusCleared}).
		Where("expected_clear_date IS NOT NULL AND expected_clear_date <= ?", now).
		Where("archived = ?", false).
		Order("expected_clear_date ASC").
		Offset(offset).
		Limit(limit).
		Find(&earnings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list releasable earnings: %w", err)
	}
	return earnings, nil
}

// MarkEarningReleased records the terminal status transition inside the
// caller's transaction. The release procedure is the sole writer of
// this transition.
func (d *Database) MarkEarningReleased(tx *gorm.DB, earningID string, releasedAt time.Time) error {
	result := tx.Model(&types.Earning{}).
		Where("earning_id = ?", earningID).
		Updates(map[string]interface{}{
			"status":      types.EarningStatusReleased,
			"released_at": releasedAt,
			"updated_at":  releasedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark earning released: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("earning not found for release update")
	}
	return nil
}

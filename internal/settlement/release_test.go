package settlement_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paystream/settlement-api/internal/escrow"
	"github.com/paystream/settlement-api/internal/idempotency"
	"github.com/paystream/settlement-api/internal/ledger"
	"github.com/paystream/settlement-api/internal/settlement"
	"github.com/paystream/settlement-api/internal/types"
	"github.com/paystream/settlement-api/pkg/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPlatformID = "platform"

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Company{},
		&types.Earning{},
		&idempotency.Record{},
		&escrow.Payment{},
		&ledger.Account{},
		&ledger.Group{},
		&ledger.Entry{},
	))
	return db
}

func newTestService(t *testing.T) (*settlement.Service, *gorm.DB) {
	db := newTestDB(t)
	ledgerService := ledger.NewService(db, testPlatformID)
	service := settlement.NewService(db, escrow.NewPaymentGuard(), ledgerService, testPlatformID)
	return service, db
}

// seedSeller creates a seller company with a zero-balance TRY account.
func seedSeller(t *testing.T, db *gorm.DB, sellerID string) {
	require.NoError(t, db.Create(&types.Company{CompanyID: sellerID, Name: sellerID}).Error)
	require.NoError(t, db.Create(&ledger.Account{
		AccountID:        uuid.New().String(),
		CompanyID:        sellerID,
		Currency:         "TRY",
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
	}).Error)
}

// seedCollectedPayment records collected, undisputed escrow funds for a shipment.
func seedCollectedPayment(t *testing.T, db *gorm.DB, shipmentID string) {
	require.NoError(t, db.Create(&escrow.Payment{
		ShipmentID: shipmentID,
		OrderID:    "ORD-" + shipmentID,
		Amount:     decimal.NewFromInt(100),
		Currency:   "TRY",
		Status:     escrow.PaymentStatusCollected,
	}).Error)
}

// seedEarning creates a due CLEARED earning (gross 100, commission 10,
// net 90, TRY). Mods adjust the defaults before insert.
func seedEarning(t *testing.T, db *gorm.DB, earningID, sellerID, shipmentID string, mods ...func(*types.Earning)) {
	due := time.Now().Add(-time.Hour)
	earning := &types.Earning{
		EarningID:        earningID,
		SellerCompanyID:  sellerID,
		ShipmentID:       shipmentID,
		GrossAmount:      decimal.NewFromInt(100),
		CommissionAmount: decimal.NewFromInt(10),
		ChargebackAmount: decimal.Zero,
		NetAmount:        decimal.NewFromInt(90),
		Currency:         "TRY",
		Status:           types.EarningStatusCleared,
		ExpectedClearDate: &due,
	}
	for _, mod := range mods {
		mod(earning)
	}
	require.NoError(t, db.Create(earning).Error)
}

func sellerBalance(t *testing.T, db *gorm.DB, sellerID string) decimal.Decimal {
	var account ledger.Account
	require.NoError(t, db.Where("company_id = ? AND currency = ?", sellerID, "TRY").First(&account).Error)
	return account.AvailableBalance
}

func countGroups(t *testing.T, db *gorm.DB) int64 {
	var count int64
	require.NoError(t, db.Model(&ledger.Group{}).Count(&count).Error)
	return count
}

func TestRelease_MovesNetToSellerBalance(t *testing.T) {
	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1")

	require.NoError(t, service.Release("ERN-1"))

	earning, err := service.GetEarning("ERN-1")
	require.NoError(t, err)
	require.NotNil(t, earning)
	assert.Equal(t, types.EarningStatusReleased, earning.Status)
	require.NotNil(t, earning.ReleasedAt)

	assert.True(t, sellerBalance(t, db, "SELLER-1").Equal(decimal.NewFromInt(90)))
	assert.EqualValues(t, 1, countGroups(t, db))

	var record idempotency.Record
	require.NoError(t, db.Where("key = ?", settlement.ReleaseKey("ERN-1")).First(&record).Error)
	assert.Equal(t, idempotency.StatusSucceeded, record.Status)
}

func TestRelease_SecondCallIsNoOp(t *testing.T) {
	// GIVEN: an earning already released
	// WHEN: release is called again
	// THEN: it succeeds without posting a second group or moving the
	// balance again

	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1")

	require.NoError(t, service.Release("ERN-1"))
	require.NoError(t, service.Release("ERN-1"))

	assert.EqualValues(t, 1, countGroups(t, db))
	assert.True(t, sellerBalance(t, db, "SELLER-1").Equal(decimal.NewFromInt(90)))
}

func TestRelease_ConcurrentAttemptSeesAlreadyRunning(t *testing.T) {
	// GIVEN: a fresh STARTED idempotency record held by another attempt
	// WHEN: release is called for the same earning
	// THEN: it fails with ErrAlreadyRunning and posts nothing

	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1")

	require.NoError(t, db.Create(&idempotency.Record{
		Key:       settlement.ReleaseKey("ERN-1"),
		Scope:     settlement.ScopeEarningRelease,
		CompanyID: testPlatformID,
		Status:    idempotency.StatusStarted,
		LockedAt:  time.Now(),
	}).Error)

	err := service.Release("ERN-1")
	assert.ErrorIs(t, err, errs.ErrAlreadyRunning)
	assert.Zero(t, countGroups(t, db))
	assert.True(t, sellerBalance(t, db, "SELLER-1").IsZero())
}

func TestRelease_ReleasedStatusClosesOutLockRecord(t *testing.T) {
	// GIVEN: the earning was finalized by another path but the
	// idempotency record is a stale STARTED
	// WHEN: release runs
	// THEN: it marks the record succeeded and posts nothing

	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	released := time.Now().Add(-time.Hour)
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1", func(e *types.Earning) {
		e.Status = types.EarningStatusReleased
		e.ReleasedAt = &released
	})

	require.NoError(t, db.Create(&idempotency.Record{
		Key:       settlement.ReleaseKey("ERN-1"),
		Scope:     settlement.ScopeEarningRelease,
		CompanyID: testPlatformID,
		Status:    idempotency.StatusStarted,
		LockedAt:  time.Now().Add(-time.Hour),
	}).Error)

	require.NoError(t, service.Release("ERN-1"))

	var record idempotency.Record
	require.NoError(t, db.Where("key = ?", settlement.ReleaseKey("ERN-1")).First(&record).Error)
	assert.Equal(t, idempotency.StatusSucceeded, record.Status)
	assert.Zero(t, countGroups(t, db))
}

func TestRelease_NotFound(t *testing.T) {
	service, _ := newTestService(t)

	err := service.Release("NO-SUCH-EARNING")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRelease_FutureClearDateRejected(t *testing.T) {
	// An earning whose expected clear date is in the future always fails
	// validation and produces zero ledger rows.

	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	future := time.Now().Add(24 * time.Hour)
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1", func(e *types.Earning) {
		e.ExpectedClearDate = &future
	})

	err := service.Release("ERN-1")
	assert.ErrorIs(t, err, errs.ErrValidation)

	assert.Zero(t, countGroups(t, db))
	var entries int64
	db.Model(&ledger.Entry{}).Count(&entries)
	assert.Zero(t, entries)
	assert.True(t, sellerBalance(t, db, "SELLER-1").IsZero())

	earning, err := service.GetEarning("ERN-1")
	require.NoError(t, err)
	assert.Equal(t, types.EarningStatusCleared, earning.Status)
}

func TestRelease_UnsetClearDateRejected(t *testing.T) {
	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1", func(e *types.Earning) {
		e.ExpectedClearDate = nil
	})

	err := service.Release("ERN-1")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRelease_ArchivedRejected(t *testing.T) {
	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	seedCollectedPayment(t, db, "SHP-1")
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1", func(e *types.Earning) {
		e.Archived = true
	})

	err := service.Release("ERN-1")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRelease_EscrowNotCollectedRejected(t *testing.T) {
	// GIVEN: escrow funds for the shipment are still pending
	// WHEN: release runs
	// THEN: it fails with ErrEscrowUnavailable and the transaction rolls
	// back the idempotency record along with everything else

	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	require.NoError(t, db.Create(&escrow.Payment{
		ShipmentID: "SHP-1",
		OrderID:    "ORD-1",
		Amount:     decimal.NewFromInt(100),
		Currency:   "TRY",
		Status:     escrow.PaymentStatusPending,
	}).Error)
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1")

	err := service.Release("ERN-1")
	assert.ErrorIs(t, err, errs.ErrEscrowUnavailable)

	assert.Zero(t, countGroups(t, db))
	var records int64
	db.Model(&idempotency.Record{}).Count(&records)
	assert.Zero(t, records, "rollback must remove the lock record with the rest of the writes")
}

func TestRelease_DisputedEscrowRejected(t *testing.T) {
	service, db := newTestService(t)
	seedSeller(t, db, "SELLER-1")
	require.NoError(t, db.Create(&escrow.Payment{
		ShipmentID: "SHP-1",
		OrderID:    "ORD-1",
		Amount:     decimal.NewFromInt(100),
		Currency:   "TRY",
		Status:     escrow.PaymentStatusCollected,
		Disputed:   true,
	}).Error)
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1")

	err := service.Release("ERN-1")
	assert.ErrorIs(t, err, errs.ErrEscrowUnavailable)
}

func TestRelease_MissingSellerAccountRollsBackEverything(t *testing.T) {
	// A missing seller account surfaces as an AppError and must leave
	// the earning untouched.

	service, db := newTestService(t)
	require.NoError(t, db.Create(&types.Company{CompanyID: "SELLER-1", Name: "SELLER-1"}).Error)
	seedCollectedPayment(t, db, "SHP-1")
	seedEarning(t, db, "ERN-1", "SELLER-1", "SHP-1")

	err := service.Release("ERN-1")
	require.Error(t, err)
	var appErr *errs.AppError
	assert.ErrorAs(t, err, &appErr)

	earning, err := service.GetEarning("ERN-1")
	require.NoError(t, err)
	assert.Equal(t, types.EarningStatusCleared, earning.Status)
	assert.Nil(t, earning.ReleasedAt)
	assert.Zero(t, countGroups(t, db))
}

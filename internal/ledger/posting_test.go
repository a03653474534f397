package ledger_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paystream/settlement-api/internal/ledger"
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
	require.NoError(t, db.AutoMigrate(&ledger.Account{}, &ledger.Group{}, &ledger.Entry{}))
	return db
}

func newSellerAccount(t *testing.T, db *gorm.DB, companyID, currency string) *ledger.Account {
	account := &ledger.Account{
		AccountID:        uuid.New().String(),
		CompanyID:        companyID,
		Currency:         currency,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func releasePosting(sellerID string) ledger.ReleasePosting {
	return ledger.ReleasePosting{
		Gross:           decimal.NewFromInt(100),
		Commission:      decimal.NewFromInt(10),
		Chargeback:      decimal.Zero,
		Net:             decimal.NewFromInt(90),
		Currency:        "TRY",
		RefType:         "shipment",
		RefID:           "SHP-1",
		SellerCompanyID: sellerID,
		Description:     "Release of earning ERN-1 for shipment SHP-1",
	}
}

func TestPostRelease_WorkedExample(t *testing.T) {
	// GIVEN: an earning split of gross 100, commission 10, chargeback 0,
	// net 90 in TRY
	// WHEN: the release is posted
	// THEN: exactly five entries are created forming two balanced legs,
	// and the seller's available balance increases by exactly 90

	db := newTestDB(t)
	service := ledger.NewService(db, testPlatformID)
	seller := newSellerAccount(t, db, "SELLER-1", "TRY")

	require.NoError(t, service.PostRelease(db, "key-1", releasePosting("SELLER-1")))

	var group ledger.Group
	require.NoError(t, db.Where("idempotency_key = ?", "key-1").First(&group).Error)
	assert.Equal(t, ledger.GroupTypeEarningRelease, group.GroupType)
	assert.Equal(t, testPlatformID, group.CompanyID)

	entries, err := service.GetDB().GetGroupEntries(group.GroupID)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var platformAccount ledger.Account
	require.NoError(t, db.Where("company_id = ? AND currency = ?", testPlatformID, "TRY").First(&platformAccount).Error)

	type line struct {
		accountType ledger.AccountType
		direction   ledger.Direction
		amount      string
		companyID   string
		accountID   string
	}
	want := []line{
		{ledger.AccountEscrowLiability, ledger.Debit, "100", testPlatformID, platformAccount.AccountID},
		{ledger.AccountPlatformRevenueCommission, ledger.Credit, "10", testPlatformID, platformAccount.AccountID},
		{ledger.AccountPlatformIntercoClearing, ledger.Credit, "90", testPlatformID, platformAccount.AccountID},
		{ledger.AccountSellerIntercoClearing, ledger.Debit, "90", "SELLER-1", seller.AccountID},
		{ledger.AccountSellerPayable, ledger.Credit, "90", "SELLER-1", seller.AccountID},
	}
	for i, w := range want {
		assert.Equal(t, w.accountType, entries[i].AccountType)
		assert.Equal(t, w.direction, entries[i].Direction)
		assert.True(t, entries[i].Amount.Equal(decimal.RequireFromString(w.amount)),
			"entry %d amount %s, want %s", i, entries[i].Amount, w.amount)
		assert.Equal(t, w.companyID, entries[i].CompanyID)
		assert.Equal(t, w.accountID, entries[i].AccountID)
		assert.Equal(t, "TRY", entries[i].Currency)
		assert.Equal(t, "shipment", entries[i].RefType)
		assert.Equal(t, "SHP-1", entries[i].RefID)
	}

	var updatedSeller ledger.Account
	require.NoError(t, db.Where("account_id = ?", seller.AccountID).First(&updatedSeller).Error)
	assert.True(t, updatedSeller.AvailableBalance.Equal(decimal.NewFromInt(90)),
		"seller available balance %s, want 90", updatedSeller.AvailableBalance)

	assert.NoError(t, service.CheckGroupBalanced(group.GroupID))
}

func TestPostRelease_LazilyCreatesPlatformAccount(t *testing.T) {
	db := newTestDB(t)
	service := ledger.NewService(db, testPlatformID)
	newSellerAccount(t, db, "SELLER-1", "TRY")

	var count int64
	db.Model(&ledger.Account{}).Where("company_id = ?", testPlatformID).Count(&count)
	require.Zero(t, count)

	require.NoError(t, service.PostRelease(db, "key-1", releasePosting("SELLER-1")))

	var platformAccount ledger.Account
	require.NoError(t, db.Where("company_id = ? AND currency = ?", testPlatformID, "TRY").First(&platformAccount).Error)
	assert.True(t, platformAccount.AvailableBalance.IsZero())
	assert.True(t, platformAccount.PendingBalance.IsZero())
}

func TestPostRelease_MissingSellerAccountFailsHard(t *testing.T) {
	// A missing seller account is a misconfiguration, not a transient
	// condition: the posting must fail with an AppError and leave no
	// ledger rows behind.

	db := newTestDB(t)
	service := ledger.NewService(db, testPlatformID)

	err := service.PostRelease(db, "key-1", releasePosting("NO-SUCH-SELLER"))
	require.Error(t, err)

	var appErr *errs.AppError
	assert.ErrorAs(t, err, &appErr)

	var groups int64
	db.Model(&ledger.Group{}).Count(&groups)
	assert.Zero(t, groups)
	var entries int64
	db.Model(&ledger.Entry{}).Count(&entries)
	assert.Zero(t, entries)
}

func TestPostRelease_ExistingGroupShortCircuits(t *testing.T) {
	// GIVEN: a group already posted for the idempotency key
	// WHEN: the same release is posted again
	// THEN: no new entries appear and the balance moves only once

	db := newTestDB(t)
	service := ledger.NewService(db, testPlatformID)
	seller := newSellerAccount(t, db, "SELLER-1", "TRY")

	require.NoError(t, service.PostRelease(db, "key-1", releasePosting("SELLER-1")))
	require.NoError(t, service.PostRelease(db, "key-1", releasePosting("SELLER-1")))

	var groups int64
	db.Model(&ledger.Group{}).Count(&groups)
	assert.EqualValues(t, 1, groups)

	var entries int64
	db.Model(&ledger.Entry{}).Count(&entries)
	assert.EqualValues(t, 5, entries)

	var updatedSeller ledger.Account
	require.NoError(t, db.Where("account_id = ?", seller.AccountID).First(&updatedSeller).Error)
	assert.True(t, updatedSeller.AvailableBalance.Equal(decimal.NewFromInt(90)))
}

func TestPostRelease_DistinctKeysPostIndependently(t *testing.T) {
	db := newTestDB(t)
	service := ledger.NewService(db, testPlatformID)
	seller := newSellerAccount(t, db, "SELLER-1", "TRY")

	require.NoError(t, service.PostRelease(db, "key-1", releasePosting("SELLER-1")))

	second := releasePosting("SELLER-1")
	second.RefID = "SHP-2"
	require.NoError(t, service.PostRelease(db, "key-2", second))

	var updatedSeller ledger.Account
	require.NoError(t, db.Where("account_id = ?", seller.AccountID).First(&updatedSeller).Error)
	assert.True(t, updatedSeller.AvailableBalance.Equal(decimal.NewFromInt(180)),
		"two distinct releases must each move the balance")
}

func TestCheckGroupBalanced_DetectsImbalance(t *testing.T) {
	db := newTestDB(t)
	service := ledger.NewService(db, testPlatformID)

	group := &ledger.Group{
		GroupID:        "LGR-manual",
		IdempotencyKey: "key-manual",
		CompanyID:      testPlatformID,
		GroupType:      ledger.GroupTypeEarningRelease,
	}
	require.NoError(t, db.Create(group).Error)
	require.NoError(t, db.Create(&ledger.Entry{
		CompanyID:   testPlatformID,
		AccountID:   "acc-1",
		GroupID:     group.GroupID,
		AccountType: ledger.AccountEscrowLiability,
		Direction:   ledger.Debit,
		Amount:      decimal.NewFromInt(100),
		Currency:    "TRY",
	}).Error)

	assert.Error(t, service.CheckGroupBalanced(group.GroupID))
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountType tags a ledger entry with the logical account it posts to.
type AccountType string

const (
	AccountEscrowLiability           AccountType = "ESCROW_LIABILITY"
	AccountPlatformRevenueCommission AccountType = "PLATFORM_REVENUE_COMMISSION"
	AccountSellerPayable             AccountType = "SELLER_PAYABLE"
	AccountPlatformIntercoClearing   AccountType = "PLATFORM_INTERCO_CLEARING"
	AccountSellerIntercoClearing     AccountType = "SELLER_INTERCO_CLEARING"
)

// Direction is the side of a double-entry posting.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// GroupTypeEarningRelease marks groups created by the release procedure.
const GroupTypeEarningRelease = "EARNING_RELEASE"

// Account holds one company's balances in one currency. The platform's
// account is provisioned lazily on first use; seller accounts are
// created by onboarding and must pre-exist.
type Account struct {
	gorm.Model       `json:"-"`
	AccountID        string          `gorm:"uniqueIndex" json:"account_id"`
	CompanyID        string          `gorm:"uniqueIndex:idx_ledger_accounts_company_currency" json:"company_id"`
	Currency         string          `gorm:"uniqueIndex:idx_ledger_accounts_company_currency" json:"currency"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(20,4)" json:"available_balance"`
	PendingBalance   decimal.Decimal `gorm:"type:decimal(20,4)" json:"pending_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Group is one atomic, balanced accounting event. Its existence for a
// given idempotency key is the authoritative "already posted" signal,
// independent of the earning's own status field.
type Group struct {
	gorm.Model     `json:"-"`
	GroupID        string    `gorm:"uniqueIndex" json:"group_id"`
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	CompanyID      string    `gorm:"index" json:"company_id"`
	GroupType      string    `json:"group_type"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Entry is one debit or credit line within a group. Within a group the
// debit and credit sums are equal, independently per currency.
type Entry struct {
	gorm.Model  `json:"-"`
	CompanyID   string          `gorm:"index" json:"company_id"`
	AccountID   string          `gorm:"index" json:"account_id"`
	GroupID     string          `gorm:"index" json:"group_id"`
	AccountType AccountType     `json:"account_type"`
	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Currency    string          `json:"currency"`
	RefType     string          `json:"ref_type"`
	RefID       string          `json:"ref_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Account) TableName() string { return "ledger_accounts" }
func (Group) TableName() string   { return "ledger_groups" }
func (Entry) TableName() string   { return "ledger_entries" }

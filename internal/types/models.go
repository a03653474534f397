package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Company represents one tenant scope. The platform itself is a Company
// whose ID is injected at startup; sellers are created by onboarding.
type Company struct {
	gorm.Model `json:"-"`
	CompanyID  string    `gorm:"uniqueIndex" json:"company_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EarningStatus is the lifecycle state of an earning.
type EarningStatus string

const (
	EarningStatusPending  EarningStatus = "PENDING"
	EarningStatusCleared  EarningStatus = "CLEARED"
	EarningStatusReleased EarningStatus = "RELEASED"
)

// CanTransitionTo validates the earning state machine. The only legal
// transitions are PENDING -> RELEASED and CLEARED -> RELEASED; RELEASED
// is terminal.
func (s EarningStatus) CanTransitionTo(next EarningStatus) error {
	if next != EarningStatusReleased {
		return fmt.Errorf("unsupported earning transition %s -> %s", s, next)
	}
	switch s {
	case EarningStatusPending, EarningStatusCleared:
		return nil
	default:
		return fmt.Errorf("cannot release earning in status %s", s)
	}
}

// Earning is a unit of money owed to one seller for one fulfilled
// shipment, pending transfer from the platform's escrow balance.
// Amounts satisfy net = gross - commission - chargeback; that identity
// is enforced by the upstream fulfillment producer and consumed as
// given here.
type Earning struct {
	gorm.Model       `json:"-"`
	EarningID        string          `gorm:"uniqueIndex" json:"earning_id"`
	SellerCompanyID  string          `gorm:"index" json:"seller_company_id"`
	ShipmentID       string          `gorm:"index" json:"shipment_id"`
	GrossAmount      decimal.Decimal `gorm:"type:decimal(20,4)" json:"gross_amount"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(20,4)" json:"commission_amount"`
	ChargebackAmount decimal.Decimal `gorm:"type:decimal(20,4)" json:"chargeback_amount"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(20,4)" json:"net_amount"`
	Currency         string          `json:"currency"`
	Status           EarningStatus   `gorm:"index" json:"status"`
	Archived         bool            `gorm:"index" json:"archived"`
	ExpectedClearDate *time.Time     `gorm:"index" json:"expected_clear_date"`
	ReleasedAt       *time.Time      `json:"released_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

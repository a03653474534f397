package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningResponse represents the API view of an earning
type EarningResponse struct {
	EarningID        string          `json:"earning_id"`
	SellerCompanyID  string          `json:"seller_company_id"`
	ShipmentID       string          `json:"shipment_id"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	ChargebackAmount decimal.Decimal `json:"chargeback_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Currency         string          `json:"currency"`
	Status           EarningStatus   `json:"status"`
	ExpectedClearDate *time.Time     `json:"expected_clear_date"`
	ReleasedAt       *time.Time      `json:"released_at"`
}

// AccountResponse represents the API view of a ledger account balance
type AccountResponse struct {
	CompanyID        string          `json:"company_id"`
	Currency         string          `json:"currency"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

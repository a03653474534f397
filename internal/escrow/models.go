package escrow

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCollected PaymentStatus = "COLLECTED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment records the escrow state of the buyer funds backing one
// shipment. Written by the payment-provider integration; read-only for
// the settlement core.
type Payment struct {
	gorm.Model `json:"-"`
	ShipmentID string          `gorm:"uniqueIndex" json:"shipment_id"`
	OrderID    string          `gorm:"index" json:"order_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Currency   string          `json:"currency"`
	Status     PaymentStatus   `json:"status"`
	Disputed   bool            `json:"disputed"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

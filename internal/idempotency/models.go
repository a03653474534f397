package idempotency

import (
	"time"

	"gorm.io/gorm"
)

type RecordStatus string

const (
	StatusStarted   RecordStatus = "STARTED"
	StatusSucceeded RecordStatus = "SUCCEEDED"
)

// Record is a durable lock-and-result row for one protected operation
// instance. The unique index on Key is what serializes concurrent
// attempts at the database level.
type Record struct {
	gorm.Model  `json:"-"`
	Key         string       `gorm:"uniqueIndex" json:"key"`
	Scope       string       `json:"scope"`
	CompanyID   string       `json:"company_id"`
	Status      RecordStatus `json:"status"`
	LockedAt    time.Time    `json:"locked_at"`
	CompletedAt *time.Time   `json:"completed_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

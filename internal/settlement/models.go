package settlement

import "time"

// CycleOptions controls one batch release sweep.
type CycleOptions struct {
	// Now is the eligibility cutoff; zero means time.Now().
	Now time.Time
	// BatchSize is the page size for the eligibility scan.
	BatchSize int
}

// CycleMetrics is the externally observed summary of one sweep.
// Per-item detail is available only via logs.
type CycleMetrics struct {
	Attempted      int `json:"attempted"`
	Released       int `json:"released"`
	Skipped        int `json:"skipped"`
	AlreadyRunning int `json:"already_running"`
	Failed         int `json:"failed"`
}

// ReleaseResponse is returned by the single-release endpoint.
type ReleaseResponse struct {
	EarningID string    `json:"earning_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

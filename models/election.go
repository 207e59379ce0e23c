package models

import "time"

// Election is the local cache row for an election. The ledger owns the
// authoritative record; this row carries the local-only policy fields
// (is_live_results, expires_at) and a derived copy of the phase that is only
// ever advanced after a confirmed ledger transition.
type Election struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	BlockchainID  uint64     `gorm:"uniqueIndex;column:blockchain_id" json:"id"`
	Name          string     `gorm:"size:200" json:"name"`
	Description   string     `gorm:"size:1000" json:"description"`
	Phase         string     `gorm:"size:20" json:"phase"`
	IsLiveResults bool       `json:"is_live_results"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (Election) TableName() string {
	return "elections"
}

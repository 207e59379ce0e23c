package models

import "time"

// VoteReceipt records that a vote event happened, never what was chosen.
// There is deliberately no candidate column anywhere in this row; the
// enrollment hash is the only link back to the voter and it is one-way.
// Rows are written exactly once, after ledger confirmation, and never
// updated or deleted.
type VoteReceipt struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ReceiptID      uint64    `gorm:"uniqueIndex;column:receipt_id" json:"receipt_id"`
	ElectionID     uint64    `gorm:"index" json:"election_id"`
	EnrollmentHash string    `gorm:"index;size:66" json:"enrollment_hash"`
	VisibleTag     string    `gorm:"size:10" json:"visible_tag"`
	TxHash         string    `gorm:"size:66" json:"tx_hash"`
	BlockNumber    uint64    `json:"block_number"`
	CreatedAt      time.Time `json:"timestamp"`
}

func (VoteReceipt) TableName() string {
	return "vote_receipts"
}

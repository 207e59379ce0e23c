package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"votechain-backend/models"
)

// RecordReceipt inserts a receipt row. Rows are insert-only; nothing in this
// store ever updates or deletes one. Uniqueness per (enrollment hash,
// election) is guaranteed upstream by the ledger's one-vote rule; the cache
// is a passive recorder.
func (s *Store) RecordReceipt(r *models.VoteReceipt) error {
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("failed to record receipt %d: %w", r.ReceiptID, err)
	}
	return nil
}

// ReceiptByID looks up a receipt by its ledger-assigned id.
func (s *Store) ReceiptByID(receiptID uint64) (*models.VoteReceipt, error) {
	var r models.VoteReceipt
	err := s.db.Where("receipt_id = ?", receiptID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.Errorf(models.ErrNotFound, "receipt %d not in cache", receiptID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt %d: %w", receiptID, err)
	}
	return &r, nil
}

// ReceiptByEnrollmentHash finds the receipt for an enrollment hash. The
// combined (hash, election) lookup is tried first; on a miss it falls back
// to hash-only matching, which tolerates election-id drift between ledger
// and cache. The returned exact flag is false for a fallback match, which
// callers should treat as lower confidence.
func (s *Store) ReceiptByEnrollmentHash(hash string, electionID uint64) (*models.VoteReceipt, bool, error) {
	var r models.VoteReceipt
	err := s.db.Where("enrollment_hash = ? AND election_id = ?", hash, electionID).First(&r).Error
	if err == nil {
		return &r, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to search receipts: %w", err)
	}

	err = s.db.Where("enrollment_hash = ?", hash).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, models.NewError(models.ErrNotFound, "no receipt for this enrollment")
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to search receipts: %w", err)
	}
	return &r, false, nil
}

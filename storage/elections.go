package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"votechain-backend/models"
)

// UpsertElection writes the cache row for an election. There is at most one
// row per blockchain id.
func (s *Store) UpsertElection(e *models.Election) error {
	var existing models.Election
	err := s.db.Where("blockchain_id = ?", e.BlockchainID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(e).Error
	}
	if err != nil {
		return fmt.Errorf("failed to load election %d: %w", e.BlockchainID, err)
	}
	e.ID = existing.ID
	e.CreatedAt = existing.CreatedAt
	return s.db.Save(e).Error
}

// ElectionByBlockchainID loads the cache row for an election, if any.
func (s *Store) ElectionByBlockchainID(blockchainID uint64) (*models.Election, error) {
	var e models.Election
	err := s.db.Where("blockchain_id = ?", blockchainID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.Errorf(models.ErrNotFound, "election %d not in cache", blockchainID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load election %d: %w", blockchainID, err)
	}
	return &e, nil
}

// Elections returns all cached election rows, keyed by blockchain id.
func (s *Store) Elections() (map[uint64]*models.Election, error) {
	var rows []models.Election
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list elections: %w", err)
	}
	out := make(map[uint64]*models.Election, len(rows))
	for i := range rows {
		out[rows[i].BlockchainID] = &rows[i]
	}
	return out, nil
}

// AdvancePhase mirrors a confirmed ledger transition into the cache. The
// cached phase only ever moves forward; a regressing write is dropped and
// logged rather than applied.
func (s *Store) AdvancePhase(blockchainID uint64, phase models.Phase, at time.Time) error {
	row, err := s.ElectionByBlockchainID(blockchainID)
	if err != nil {
		return err
	}

	current, parseErr := models.ParsePhase(row.Phase)
	if parseErr == nil && !current.Before(phase) && current != phase {
		s.logger.Warn("dropping phase regression",
			"election", blockchainID,
			"cached", row.Phase,
			"requested", phase.String(),
		)
		return nil
	}

	row.Phase = phase.String()
	switch phase {
	case models.PhaseActive:
		row.StartedAt = &at
	case models.PhaseEnded:
		row.EndedAt = &at
	}
	return s.db.Save(row).Error
}

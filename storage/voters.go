package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"votechain-backend/models"
)

func (s *Store) CreateVoter(v *models.Voter) error {
	if err := s.db.Create(v).Error; err != nil {
		return fmt.Errorf("failed to create voter %s: %w", v.Enrollment, err)
	}
	return nil
}

func (s *Store) VoterByEnrollment(enrollment string) (*models.Voter, error) {
	var v models.Voter
	err := s.db.Where("enrollment = ?", enrollment).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewError(models.ErrNotFound, "voter not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load voter %s: %w", enrollment, err)
	}
	return &v, nil
}

func (s *Store) Voters() ([]models.Voter, error) {
	var out []models.Voter
	if err := s.db.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}
	return out, nil
}

func (s *Store) CreateRegistration(r *models.VoterElectionRegistration) error {
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

// RegistrationFor returns the registration row for one voter in one
// election, if present.
func (s *Store) RegistrationFor(voterID uint, electionID uint64) (*models.VoterElectionRegistration, error) {
	var r models.VoterElectionRegistration
	err := s.db.Where("voter_id = ? AND election_id = ?", voterID, electionID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewError(models.ErrNotFound, "not registered for this election")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	return &r, nil
}

// MarkVoted flips the has_voted flag after a confirmed vote.
func (s *Store) MarkVoted(voterID uint, electionID uint64) error {
	return s.db.Model(&models.VoterElectionRegistration{}).
		Where("voter_id = ? AND election_id = ?", voterID, electionID).
		Update("has_voted", true).Error
}

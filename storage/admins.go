package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"votechain-backend/models"
)

func (s *Store) CreateAdmin(a *models.Admin) error {
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("failed to create admin %s: %w", a.Username, err)
	}
	return nil
}

func (s *Store) AdminByUsername(username string) (*models.Admin, error) {
	var a models.Admin
	err := s.db.Where("username = ?", username).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewError(models.ErrNotFound, "admin not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin %s: %w", username, err)
	}
	return &a, nil
}

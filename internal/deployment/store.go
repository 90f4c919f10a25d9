package deployment

import (
	"errors"

	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"gorm.io/gorm"
)

// AttemptStore persists deployment attempts. FindActiveByOwner returns
// (nil, nil) when the owner has no non-terminal attempt.
type AttemptStore interface {
	Insert(attempt *model.DeploymentAttempt) error
	Update(attempt *model.DeploymentAttempt) error
	FindActiveByOwner(ownerId string) (*model.DeploymentAttempt, error)
	ListByOwner(ownerId string, offset int, limit int) ([]model.DeploymentAttempt, int64, error)
}

type gormAttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) AttemptStore {
	return &gormAttemptStore{db: db}
}

func (s *gormAttemptStore) Insert(attempt *model.DeploymentAttempt) error {
	return s.db.Create(attempt).Error
}

func (s *gormAttemptStore) Update(attempt *model.DeploymentAttempt) error {
	return s.db.Save(attempt).Error
}

func (s *gormAttemptStore) FindActiveByOwner(ownerId string) (*model.DeploymentAttempt, error) {
	var attempt model.DeploymentAttempt
	result := s.db.
		Where("owner_id = ? AND state NOT IN ?", ownerId, []string{
			string(StateConfirmed),
			string(StateFailed),
			string(StateTimedOut),
		}).
		First(&attempt)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &attempt, nil
}

func (s *gormAttemptStore) ListByOwner(ownerId string, offset int, limit int) ([]model.DeploymentAttempt, int64, error) {
	var attempts []model.DeploymentAttempt
	var total int64

	if err := s.db.Model(&model.DeploymentAttempt{}).Where("owner_id = ?", ownerId).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := s.db.
		Where("owner_id = ?", ownerId).
		Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&attempts)

	return attempts, total, result.Error
}

package custody

import (
	"errors"

	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) FindByOwnerId(ownerId string) (*model.CustodyRecord, error) {
	return s.findOne("owner_id = ?", ownerId)
}

func (s *gormStore) FindByCustodialAddress(address string) (*model.CustodyRecord, error) {
	return s.findOne("custodial_address = ?", address)
}

func (s *gormStore) Insert(record *model.CustodyRecord) error {
	return s.db.Create(record).Error
}

func (s *gormStore) AttachContractAddress(ownerId string, contractAddress string) (bool, error) {
	// Single conditional update keeps the set-once guarantee inside the
	// database, not just behind the in-process lock.
	result := s.db.
		Model(&model.CustodyRecord{}).
		Where("owner_id = ? AND contract_address IS NULL", ownerId).
		Update("contract_address", contractAddress)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (s *gormStore) findOne(query string, arg string) (*model.CustodyRecord, error) {
	var record model.CustodyRecord
	result := s.db.Where(query, arg).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &record, nil
}

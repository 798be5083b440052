package repository

import (
	"github.com/andrewwildgoose/nappio-backend/app/models"
	"gorm.io/gorm"
)

// GormAddressRepository implements AddressRepository with GORM
type GormAddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &GormAddressRepository{db: db}
}

func (r *GormAddressRepository) Create(address *models.UserAddress) error {
	return r.db.Create(address).Error
}

func (r *GormAddressRepository) GetByID(id string) (*models.UserAddress, error) {
	var address models.UserAddress
	err := r.db.Where("id = ?", id).First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *GormAddressRepository) GetByUserID(userID string) ([]models.UserAddress, error) {
	var addresses []models.UserAddress
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// Delete removes an address owned by the given user. Returns the number of
// rows deleted so callers can distinguish "not found" from "not yours".
func (r *GormAddressRepository) Delete(id, userID string) (int64, error) {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.UserAddress{})
	return result.RowsAffected, result.Error
}

package repository

import (
	"github.com/andrewwildgoose/nappio-backend/app/models"
	"gorm.io/gorm"
)

// GormSubscriptionRepository implements SubscriptionRepository with GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

func (r *GormSubscriptionRepository) GetByUserID(userID string) ([]models.UserSubscription, error) {
	var subscriptions []models.UserSubscription
	err := r.db.Where("user_id = ?", userID).Order("subscribed_at DESC").Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *GormSubscriptionRepository) GetBySubscriptionID(subscriptionID string) (*models.UserSubscription, error) {
	var subscription models.UserSubscription
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// AssignAddress links an address to a subscription. The user ID is part of
// the match so a user can never point someone else's subscription at an
// address. Returns the number of rows updated.
func (r *GormSubscriptionRepository) AssignAddress(userID, subscriptionID, addressID string) (int64, error) {
	result := r.db.Model(&models.UserSubscription{}).
		Where("subscription_id = ? AND user_id = ?", subscriptionID, userID).
		Update("address_id", addressID)
	return result.RowsAffected, result.Error
}

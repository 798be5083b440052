package repository

import (
	"github.com/andrewwildgoose/nappio-backend/app/models"
	"gorm.io/gorm"
)

// SubscriberRepository defines the interface for newsletter subscriber operations
type SubscriberRepository interface {
	Create(subscriber *models.NewsletterSubscriber) error
	GetByEmail(email string) (*models.NewsletterSubscriber, error)
	Update(subscriber *models.NewsletterSubscriber) error
	Count() (int64, error)
}

// SubscriptionRepository defines the read-side interface for user subscriptions
type SubscriptionRepository interface {
	GetByUserID(userID string) ([]models.UserSubscription, error)
	GetBySubscriptionID(subscriptionID string) (*models.UserSubscription, error)
	AssignAddress(userID, subscriptionID, addressID string) (int64, error)
}

// AddressRepository defines the interface for user address operations
type AddressRepository interface {
	Create(address *models.UserAddress) error
	GetByID(id string) (*models.UserAddress, error)
	GetByUserID(userID string) ([]models.UserAddress, error)
	Delete(id, userID string) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Subscriber   SubscriberRepository
	Subscription SubscriptionRepository
	Address      AddressRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Subscriber:   NewSubscriberRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Address:      NewAddressRepository(db),
	}
}

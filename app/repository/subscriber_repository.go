package repository

import (
	"github.com/andrewwildgoose/nappio-backend/app/models"
	"gorm.io/gorm"
)

// GormSubscriberRepository implements SubscriberRepository with GORM
type GormSubscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &GormSubscriberRepository{db: db}
}

func (r *GormSubscriberRepository) Create(subscriber *models.NewsletterSubscriber) error {
	return r.db.Create(subscriber).Error
}

func (r *GormSubscriberRepository) GetByEmail(email string) (*models.NewsletterSubscriber, error) {
	var subscriber models.NewsletterSubscriber
	err := r.db.Where("email = ?", email).First(&subscriber).Error
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

func (r *GormSubscriberRepository) Update(subscriber *models.NewsletterSubscriber) error {
	return r.db.Save(subscriber).Error
}

func (r *GormSubscriberRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.NewsletterSubscriber{}).Count(&count).Error
	return count, err
}

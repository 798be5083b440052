package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrewwildgoose/nappio-backend/app/models"
)

// Repository provides the DB operations used by the reconciliation pipeline.
type Repository interface {
	CreateSession(sess *models.CheckoutSession) error
	GetSessionBySessionID(sessionID string) (*models.CheckoutSession, error)
	GetSessionByCustomerID(customerID string) (*models.CheckoutSession, error)
	UpdateSessionStatus(sessionID, status string) (int64, error)
	UpsertSubscription(sub *models.UserSubscription) error
	UpdateSubscriptionByProviderID(subscriptionID string, fields map[string]interface{}) (int64, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateSession(sess *models.CheckoutSession) error {
	return r.db.Create(sess).Error
}

func (r *gormRepository) GetSessionBySessionID(sessionID string) (*models.CheckoutSession, error) {
	var sess models.CheckoutSession
	err := r.db.Where("session_id = ?", sessionID).First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSessionByCustomerID resolves a provider customer to the user who started
// checkout. The newest session wins when a customer checked out repeatedly.
func (r *gormRepository) GetSessionByCustomerID(customerID string) (*models.CheckoutSession, error) {
	var sess models.CheckoutSession
	err := r.db.Where("customer_id = ?", customerID).Order("created_at DESC").First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *gormRepository) UpdateSessionStatus(sessionID, status string) (int64, error) {
	tx := r.db.Model(&models.CheckoutSession{}).
		Where("session_id = ?", sessionID).
		Update("status", status)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) UpsertSubscription(sub *models.UserSubscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan_id",
			"price_id",
			"customer_id",
			"status",
			"last_payment_date",
			"next_payment_date",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("subscription_id = ?", sub.SubscriptionID).First(sub).Error
}

func (r *gormRepository) UpdateSubscriptionByProviderID(subscriptionID string, fields map[string]interface{}) (int64, error) {
	tx := r.db.Model(&models.UserSubscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(fields)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

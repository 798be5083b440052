package models

import "time"

// Subscription states mirror the billing provider's vocabulary.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusPaused            = "paused"
)

// UserSubscription mirrors a provider subscription for one of our users.
// Rows are created on the first subscription.created event and only ever
// status-transitioned afterwards, never deleted. UserID is always resolved
// through the checkout_sessions customer_id join, never taken from a webhook
// payload.
type UserSubscription struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID  string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"subscription_id"`
	UserID          string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	PlanID          string     `gorm:"type:varchar(100);not null" json:"plan_id"`
	PriceID         string     `gorm:"type:varchar(191);not null" json:"price_id"`
	CustomerID      string     `gorm:"type:varchar(191);not null;index" json:"customer_id"`
	Status          string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	SubscribedAt    time.Time  `gorm:"type:timestamp;not null" json:"subscribed_at"`
	LastPaymentDate *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_date,omitempty"`
	NextPaymentDate *time.Time `gorm:"type:timestamp;default:null" json:"next_payment_date,omitempty"`
	CancelledAt     *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	AddressID       *string    `gorm:"type:varchar(36);default:null" json:"address_id,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription currently grants access.
func (s *UserSubscription) IsEntitling() bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

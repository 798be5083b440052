package models

import "time"

// Checkout session states. Pending is ours; the rest mirror the provider's
// reported session status after completion webhooks arrive.
const (
	CheckoutStatusPending  = "pending"
	CheckoutStatusOpen     = "open"
	CheckoutStatusComplete = "complete"
	CheckoutStatusExpired  = "expired"
)

// CheckoutSession records a checkout the user initiated with the billing
// provider. It is the only place a provider customer_id is tied to one of our
// user ids, which makes it the join table for webhook user resolution.
type CheckoutSession struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"session_id"`
	UserID     string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	CustomerID string    `gorm:"type:varchar(191);not null;index" json:"customer_id"`
	PriceID    string    `gorm:"type:varchar(191);not null" json:"price_id"`
	Status     string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserAddress is a delivery address owned by a user, optionally linked to a
// subscription via UserSubscription.AddressID.
type UserAddress struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	AddressLine1 string    `gorm:"type:varchar(200);not null" json:"address_line_1" validate:"required,max=200"`
	AddressLine2 string    `gorm:"type:varchar(200);default:null" json:"address_line_2,omitempty" validate:"max=200"`
	City         string    `gorm:"type:varchar(100);not null" json:"city" validate:"required,max=100"`
	Postcode     string    `gorm:"type:varchar(20);not null" json:"postcode" validate:"required,min=3,max=20"`
	Country      string    `gorm:"type:varchar(100);not null" json:"country" validate:"required,max=100"`
	AddressNotes string    `gorm:"type:text" json:"address_notes,omitempty" validate:"max=1000"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *UserAddress) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// BeforeCreate assigns a fresh UUID when none was provided.
func (a *UserAddress) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
)

// NewsletterSubscriber is a signup to the newsletter, created unverified and
// flipped to verified once the emailed confirmation link is followed.
type NewsletterSubscriber struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	FirstName          string     `gorm:"type:varchar(150);not null" json:"first_name" validate:"required,min=2,max=150"`
	Email              string     `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,min=5,max=200"`
	Postcode           string     `gorm:"type:varchar(10);default:null" json:"postcode,omitempty" validate:"omitempty,min=3,max=4"`
	VerificationToken  string     `gorm:"type:varchar(100);index" json:"-"`
	VerificationSentAt *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	VerifiedAt         *time.Time `gorm:"type:timestamp;default:null" json:"verified_at,omitempty"`
	SubscribedAt       time.Time  `gorm:"autoCreateTime" json:"subscribed_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"-"`
}

func (s *NewsletterSubscriber) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// NewSubscriber builds a validated, unverified subscriber with a fresh
// verification token.
func NewSubscriber(firstName, email, postcode string) (*NewsletterSubscriber, error) {
	s := &NewsletterSubscriber{
		FirstName: firstName,
		Email:     email,
		Postcode:  postcode,
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := s.GenerateVerificationToken(); err != nil {
		return nil, err
	}

	return s, nil
}

// GenerateVerificationToken creates a random token and sets VerificationSentAt
func (s *NewsletterSubscriber) GenerateVerificationToken() error {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	s.VerificationToken = hex.EncodeToString(b)
	now := time.Now()
	s.VerificationSentAt = &now
	return nil
}

// IsVerified reports whether the subscriber confirmed their email address
func (s *NewsletterSubscriber) IsVerified() bool {
	return s.VerifiedAt != nil
}

// MarkVerified sets VerifiedAt and clears the outstanding token.
func (s *NewsletterSubscriber) MarkVerified() {
	now := time.Now()
	s.VerifiedAt = &now
	s.VerificationToken = ""
}

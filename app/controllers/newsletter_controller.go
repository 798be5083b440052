package controllers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/andrewwildgoose/nappio-backend/app/models"
	"github.com/andrewwildgoose/nappio-backend/app/repository"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/database"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/mail"
)

var validate = validator.New()

// NewsletterSubscribeRequest is the payload for the public signup endpoint
type NewsletterSubscribeRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=150"`
	Email     string `json:"email" validate:"required,email,min=5,max=200"`
	Postcode  string `json:"postcode" validate:"omitempty,min=3,max=4"`
}

// HandleNewsletterSubscribe registers a new newsletter subscriber and sends
// a confirmation email with a verification link. The email send is best
// effort; the signup succeeds even when SMTP is down.
func HandleNewsletterSubscribe(c *fiber.Ctx) error {
	var req NewsletterSubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Postcode = strings.TrimSpace(req.Postcode)

	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	subscriber, err := models.NewSubscriber(req.FirstName, req.Email, req.Postcode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetSubscriberRepository()
	if err := repo.Create(subscriber); err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "already_subscribed", "message": "This email address is already signed up"})
		}
		log.Printf("[Newsletter] Failed to store subscriber: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Signup could not be completed"})
	}

	link := fmt.Sprintf("%s/api/v1/newsletter/verify?token=%s", strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/"), subscriber.VerificationToken)
	if err := mail.SendConfirmationEmail(subscriber.Email, subscriber.FirstName, link); err != nil {
		log.Printf("[Newsletter] Failed to send confirmation email to %s: %v", subscriber.Email, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Signup received, please check your inbox to confirm",
		"email":   subscriber.Email,
	})
}

// NewsletterVerifyRequest is the POST payload for the verification endpoint.
// The GET variant takes the token as a query parameter instead.
type NewsletterVerifyRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// HandleNewsletterVerify confirms a subscriber via the token from the
// confirmation email. Verifying twice is harmless.
func HandleNewsletterVerify(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	email := ""
	if token == "" {
		var req NewsletterVerifyRequest
		if err := c.BodyParser(&req); err == nil {
			token = strings.TrimSpace(req.Token)
			email = strings.TrimSpace(strings.ToLower(req.Email))
		}
	}
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_token", "message": "Verification token is required"})
	}

	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}

	var subscriber models.NewsletterSubscriber
	if err := db.Where("verification_token = ?", token).First(&subscriber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown verification token"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Verification failed"})
	}
	if email != "" && subscriber.Email != email {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown verification token"})
	}

	if !subscriber.IsVerified() {
		subscriber.MarkVerified()
		if err := repository.GetGlobalFactory().GetSubscriberRepository().Update(&subscriber); err != nil {
			log.Printf("[Newsletter] Failed to mark subscriber %s verified: %v", subscriber.Email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Verification failed"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Email address confirmed"})
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}

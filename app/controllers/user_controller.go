package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/andrewwildgoose/nappio-backend/app/models"
	"github.com/andrewwildgoose/nappio-backend/app/repository"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/usercontext"
)

// HandleGetUserSubscriptions lists the authenticated user's subscriptions
// with plan display details resolved from the billing provider.
func HandleGetUserSubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	subscriptions, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("[User] Failed to load subscriptions for %s: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscriptions"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	items := make([]fiber.Map, 0, len(subscriptions))
	for _, sub := range subscriptions {
		item := fiber.Map{
			"subscription_id":   sub.SubscriptionID,
			"plan_id":           sub.PlanID,
			"status":            sub.Status,
			"active":            sub.IsEntitling(),
			"subscribed_at":     sub.SubscribedAt.UTC().Format(time.RFC3339),
			"last_payment_date": formatTimePtr(sub.LastPaymentDate),
			"next_payment_date": formatTimePtr(sub.NextPaymentDate),
			"cancelled_at":      formatTimePtr(sub.CancelledAt),
			"address_id":        sub.AddressID,
		}
		if paymentService != nil && sub.PriceID != "" {
			if display, err := paymentService.GetPlanDisplay(ctx, sub.PriceID); err == nil {
				item["plan_name"] = display.PlanName
				item["price"] = display.Price
			} else {
				log.Printf("[User] Failed to resolve plan display for price %s: %v", sub.PriceID, err)
			}
		}
		items = append(items, item)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"subscriptions": items})
}

// AddressRequest is the payload for creating a delivery address
type AddressRequest struct {
	AddressLine1 string `json:"address_line_1" validate:"required,max=200"`
	AddressLine2 string `json:"address_line_2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	Postcode     string `json:"postcode" validate:"required,min=3,max=20"`
	Country      string `json:"country" validate:"required,max=100"`
	AddressNotes string `json:"address_notes" validate:"max=1000"`
}

// HandleCreateAddress stores a new delivery address for the authenticated user.
func HandleCreateAddress(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req AddressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	address := &models.UserAddress{
		UserID:       userCtx.UserID,
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		City:         strings.TrimSpace(req.City),
		Postcode:     strings.TrimSpace(req.Postcode),
		Country:      strings.TrimSpace(req.Country),
		AddressNotes: strings.TrimSpace(req.AddressNotes),
	}
	if err := repository.GetGlobalFactory().GetAddressRepository().Create(address); err != nil {
		log.Printf("[User] Failed to store address for %s: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Address could not be stored"})
	}

	return c.Status(fiber.StatusCreated).JSON(addressResponse(address))
}

// HandleGetAddresses lists the authenticated user's delivery addresses.
func HandleGetAddresses(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	addresses, err := repository.GetGlobalFactory().GetAddressRepository().GetByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("[User] Failed to load addresses for %s: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load addresses"})
	}

	items := make([]fiber.Map, 0, len(addresses))
	for i := range addresses {
		items = append(items, addressResponse(&addresses[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"addresses": items})
}

// HandleDeleteAddress removes one of the authenticated user's addresses.
func HandleDeleteAddress(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	addressID := strings.TrimSpace(c.Params("address_id"))
	if addressID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_address_id", "message": "Address ID is required"})
	}

	rows, err := repository.GetGlobalFactory().GetAddressRepository().Delete(addressID, userCtx.UserID)
	if err != nil {
		log.Printf("[User] Failed to delete address %s: %v", addressID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Address could not be deleted"})
	}
	if rows == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown address"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Address deleted"})
}

// AssignAddressRequest is the payload for linking an address to a subscription
type AssignAddressRequest struct {
	AddressID string `json:"address_id" validate:"required"`
}

// HandleAssignSubscriptionAddress links one of the user's addresses to one
// of the user's subscriptions. Both sides are matched on ownership.
func HandleAssignSubscriptionAddress(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	subscriptionID := strings.TrimSpace(c.Params("subscription_id"))
	if subscriptionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_subscription_id", "message": "Subscription ID is required"})
	}

	var req AssignAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}
	req.AddressID = strings.TrimSpace(req.AddressID)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	factory := repository.GetGlobalFactory()
	address, err := factory.GetAddressRepository().GetByID(req.AddressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown address"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Address lookup failed"})
	}
	if address.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown address"})
	}

	rows, err := factory.GetSubscriptionRepository().AssignAddress(userCtx.UserID, subscriptionID, req.AddressID)
	if err != nil {
		log.Printf("[User] Failed to assign address %s to subscription %s: %v", req.AddressID, subscriptionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Address could not be assigned"})
	}
	if rows == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown subscription"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Address assigned", "subscription_id": subscriptionID, "address_id": req.AddressID})
}

func addressResponse(address *models.UserAddress) fiber.Map {
	return fiber.Map{
		"id":             address.ID,
		"address_line_1": address.AddressLine1,
		"address_line_2": address.AddressLine2,
		"city":           address.City,
		"postcode":       address.Postcode,
		"country":        address.Country,
		"address_notes":  address.AddressNotes,
		"created_at":     address.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

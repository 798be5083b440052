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
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/billing"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/cache"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/database"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/identity"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/mail"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/metrics/counter"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/usercontext"
)

var (
	paymentService *billing.Service
	paymentClient  billing.ProviderClient
)

// InitializePaymentController wires the billing service used by the payment
// and webhook handlers. Must run after database setup.
func InitializePaymentController() {
	client := billing.NewStripeClientFromEnv()
	SetPaymentService(billing.NewServiceFromDB(database.GetDB(), client, identity.NewClientFromEnv(), &mail.Notifier{}, &cache.Store{}), client)
}

// SetPaymentService replaces the billing service and provider client.
// Used by tests to inject fakes.
func SetPaymentService(svc *billing.Service, client billing.ProviderClient) {
	paymentService = svc
	paymentClient = client
}

// CreateCheckoutSessionRequest is the payload for starting a checkout
type CreateCheckoutSessionRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

// HandleCreateCheckoutSession creates a provider customer for the
// authenticated user, opens a hosted checkout session for the requested
// price and records it as pending.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if paymentService == nil || paymentClient == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Billing is not configured"})
	}

	var req CreateCheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}
	req.PriceID = strings.TrimSpace(req.PriceID)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	customer, err := paymentClient.CreateCustomer(ctx, userCtx.Email, userCtx.UserID)
	if err != nil {
		log.Printf("[Payment] Failed to create customer for user %s: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Could not create billing customer"})
	}

	frontendURL := strings.TrimRight(env.GetEnv("FRONTEND_URL", "http://localhost:3000"), "/")
	successURL := frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := frontendURL + "/checkout/cancelled"

	sess, err := paymentClient.CreateCheckoutSession(ctx, customer.ID, req.PriceID, successURL, cancelURL, userCtx.UserID)
	if err != nil {
		log.Printf("[Payment] Failed to create checkout session for user %s: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Could not create checkout session"})
	}

	record := &models.CheckoutSession{
		SessionID:  sess.ID,
		UserID:     userCtx.UserID,
		CustomerID: customer.ID,
		PriceID:    req.PriceID,
		Status:     models.CheckoutStatusPending,
	}
	if err := paymentService.Repo().CreateSession(record); err != nil {
		log.Printf("[Payment] Failed to store checkout session %s: %v", sess.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Checkout session could not be recorded"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"checkout_url": sess.URL,
		"session_id":   sess.ID,
	})
}

// HandleSessionDetails returns display details for a completed checkout
// session owned by the authenticated user.
func HandleSessionDetails(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if paymentService == nil || paymentClient == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Billing is not configured"})
	}

	sessionID := strings.TrimSpace(c.Params("session_id"))
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_session_id", "message": "Session ID is required"})
	}

	stored, err := paymentService.Repo().GetSessionBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown checkout session"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session lookup failed"})
	}
	if stored.UserID != userCtx.UserID {
		// Do not reveal that the session exists for someone else
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown checkout session"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sess, err := paymentClient.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		log.Printf("[Payment] Failed to fetch checkout session %s: %v", sessionID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Could not load session details"})
	}

	customerEmail := ""
	if sess.CustomerDetails != nil {
		customerEmail = sess.CustomerDetails.Email
	}

	response := fiber.Map{
		"session_id":     sess.ID,
		"status":         string(sess.Status),
		"customer_email": customerEmail,
	}
	if display, err := paymentService.GetPlanDisplay(ctx, stored.PriceID); err == nil {
		response["plan_name"] = display.PlanName
		response["price"] = display.Price
	} else {
		log.Printf("[Payment] Failed to resolve plan display for price %s: %v", stored.PriceID, err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// HandleBillingWebhook is the provider-facing webhook endpoint. The
// signature is checked before anything is written; an unverifiable payload
// leaves no trace. Verified events are recorded once per provider event ID
// and replays are acknowledged without reprocessing.
func HandleBillingWebhook(c *fiber.Ctx) error {
	if paymentService == nil || paymentClient == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Billing is not configured"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	event, err := paymentClient.ConstructEvent(rawBody, signature)
	if err != nil {
		log.Printf("[Webhook] Signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := paymentService.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		log.Printf("[Webhook] Failed to record event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	res := paymentService.Dispatch(ctx, &event)
	if err := paymentService.MarkWebhookProcessed(ctx, stored.ID, res.Err); err != nil {
		log.Printf("[Webhook] Failed to mark event %s processed: %v", event.ID, err)
	}
	if err := counter.AddWebhookOutcome(models.BillingProviderStripe, res.Outcome.String()); err != nil {
		log.Printf("[Webhook] Outcome counter increment failed: %v", err)
	}

	body := fiber.Map{"ok": res.Err == nil, "outcome": res.Outcome.String()}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	return c.Status(res.HTTPStatus()).JSON(body)
}

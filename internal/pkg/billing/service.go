package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/andrewwildgoose/nappio-backend/app/models"
)

const planDisplayCacheTTL = time.Hour

// ProfileDirectory looks up user contact details at the identity provider.
type ProfileDirectory interface {
	GetUserProfile(ctx context.Context, userID string) (email string, firstName string, err error)
}

// Mailer sends transactional notifications. Delivery is best-effort and never
// rolls back persisted state.
type Mailer interface {
	SendSubscriptionConfirmed(to, firstName, planName, priceDisplay string) error
}

// DisplayCache caches provider display data (plan name, formatted price).
type DisplayCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// Service runs the webhook reconciliation pipeline against injected
// collaborators so tests can substitute doubles for all of them.
type Service struct {
	repo     Repository
	client   ProviderClient
	profiles ProfileDirectory
	mailer   Mailer
	cache    DisplayCache
}

// NewService creates a billing service from injected collaborators. profiles,
// mailer and cache may be nil; the matching side effects are then skipped.
func NewService(repo Repository, client ProviderClient, profiles ProfileDirectory, mailer Mailer, cache DisplayCache) *Service {
	return &Service{
		repo:     repo,
		client:   client,
		profiles: profiles,
		mailer:   mailer,
		cache:    cache,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, client ProviderClient, profiles ProfileDirectory, mailer Mailer, cache DisplayCache) *Service {
	return NewService(NewRepository(db), client, profiles, mailer, cache)
}

// Repo exposes the underlying repository for read paths outside the pipeline.
func (s *Service) Repo() Repository {
	return s.repo
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned bool
// is false when the provider event ID was seen before, in which case the event
// must be acknowledged without dispatching a handler.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// PlanDisplay is the provider display data used for email templating and the
// subscription listing endpoints.
type PlanDisplay struct {
	PlanName string `json:"plan_name"`
	Price    string `json:"price"`
}

// GetPlanDisplay resolves a price ID to its plan name and formatted price,
// consulting the cache before the provider.
func (s *Service) GetPlanDisplay(ctx context.Context, priceID string) (*PlanDisplay, error) {
	key := "plan_display:" + priceID
	if s.cache != nil {
		if raw, err := s.cache.Get(key); err == nil && raw != "" {
			var cached PlanDisplay
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	price, err := s.client.GetPrice(ctx, priceID)
	if err != nil {
		return nil, err
	}
	if price.Product == nil {
		return nil, fmt.Errorf("price %s has no product reference", priceID)
	}
	product, err := s.client.GetProduct(ctx, price.Product.ID)
	if err != nil {
		return nil, err
	}

	display := &PlanDisplay{
		PlanName: product.Name,
		Price:    formatUnitAmount(string(price.Currency), price.UnitAmount),
	}
	if s.cache != nil {
		if raw, err := json.Marshal(display); err == nil {
			if err := s.cache.Set(key, string(raw), planDisplayCacheTTL); err != nil {
				log.Printf("plan display cache write failed for %s: %v", priceID, err)
			}
		}
	}
	return display, nil
}

// formatUnitAmount renders a minor-unit amount as "GBP 9.99".
func formatUnitAmount(currency string, unitAmount int64) string {
	return fmt.Sprintf("%s %.2f", strings.ToUpper(currency), float64(unitAmount)/100.0)
}

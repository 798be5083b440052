package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/andrewwildgoose/nappio-backend/app/models"
)

// Event types handled by the pipeline. Updated and deleted share a handler:
// cancellation is detected from the subscription's canceled_at field, not the
// event type.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// Dispatch routes a signature-verified event to exactly one handler. Unknown
// event types are acknowledged so the provider stops redelivering them.
func (s *Service) Dispatch(ctx context.Context, event *stripe.Event) Result {
	switch string(event.Type) {
	case EventCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case EventSubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, event)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		return s.handleSubscriptionUpdated(ctx, event)
	default:
		log.Printf("webhook: unhandled event type %s (event_id=%s)", event.Type, event.ID)
		return Ignored()
	}
}

// eventObjectID pulls the provider object ID out of an event payload. The
// payload is treated as a trigger only; everything else is re-fetched.
func eventObjectID(event *stripe.Event) (string, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return "", fmt.Errorf("decode event %s payload: %w", event.ID, err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("event %s payload has no object id", event.ID)
	}
	return payload.ID, nil
}

// authoritativeSubscription is the single fetch path for subscription state.
// Every subscription handler goes through it; none of them read state fields
// from the webhook body.
func (s *Service) authoritativeSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return s.client.GetSubscription(ctx, subscriptionID)
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) Result {
	sessionID, err := eventObjectID(event)
	if err != nil {
		return Fatal(err)
	}

	sess, err := s.client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return Retryable(fmt.Errorf("fetch checkout session %s: %w", sessionID, err))
	}

	rows, err := s.repo.UpdateSessionStatus(sess.ID, string(sess.Status))
	if err != nil {
		return Retryable(fmt.Errorf("update checkout session %s: %w", sess.ID, err))
	}
	if rows == 0 {
		log.Printf("webhook: no checkout session record for %s, nothing to update", sess.ID)
		return Processed()
	}

	log.Printf("webhook: checkout session %s status set to %s", sess.ID, sess.Status)
	return Processed()
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, event *stripe.Event) Result {
	subscriptionID, err := eventObjectID(event)
	if err != nil {
		return Fatal(err)
	}

	sub, err := s.authoritativeSubscription(ctx, subscriptionID)
	if err != nil {
		return Retryable(fmt.Errorf("fetch subscription %s: %w", subscriptionID, err))
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return Fatal(fmt.Errorf("subscription %s has no customer", sub.ID))
	}

	// A subscription can only be attributed to a user through the checkout
	// session that created its customer. No session, no identity.
	sess, err := s.repo.GetSessionByCustomerID(sub.Customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Fatal(fmt.Errorf("no checkout session for customer %s, cannot attribute subscription %s", sub.Customer.ID, sub.ID))
		}
		return Retryable(fmt.Errorf("lookup checkout session for customer %s: %w", sub.Customer.ID, err))
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return Fatal(fmt.Errorf("subscription %s has no line items", sub.ID))
	}
	item := sub.Items.Data[0]
	if item.Price == nil {
		return Fatal(fmt.Errorf("subscription %s line item has no price", sub.ID))
	}
	planID := item.Price.Metadata["plan_id"]
	if planID == "" {
		return Fatal(fmt.Errorf("price %s carries no plan_id metadata", item.Price.ID))
	}

	lastPayment := time.Unix(item.CurrentPeriodStart, 0)
	nextPayment := time.Unix(item.CurrentPeriodEnd, 0)
	record := &models.UserSubscription{
		SubscriptionID:  sub.ID,
		UserID:          sess.UserID,
		PlanID:          planID,
		PriceID:         item.Price.ID,
		CustomerID:      sub.Customer.ID,
		Status:          string(sub.Status),
		SubscribedAt:    time.Unix(sub.Created, 0),
		LastPaymentDate: &lastPayment,
		NextPaymentDate: &nextPayment,
	}
	// Upsert keyed on subscription_id keeps replays single-row even when the
	// event-ID dedupe has been bypassed.
	if err := s.repo.UpsertSubscription(record); err != nil {
		return Retryable(fmt.Errorf("upsert subscription %s: %w", sub.ID, err))
	}
	log.Printf("webhook: subscription %s recorded for user %s (plan %s)", sub.ID, sess.UserID, planID)

	s.notifySubscriptionConfirmed(ctx, sess.UserID, item.Price.ID)
	return Processed()
}

// notifySubscriptionConfirmed sends the confirmation email. Every failure in
// here is soft: an email that cannot be addressed or delivered never unwinds
// the persisted subscription.
func (s *Service) notifySubscriptionConfirmed(ctx context.Context, userID, priceID string) {
	if s.profiles == nil || s.mailer == nil {
		return
	}

	email, firstName, err := s.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		log.Printf("webhook: user %s profile lookup failed, skipping confirmation email: %v", userID, err)
		return
	}

	display, err := s.GetPlanDisplay(ctx, priceID)
	if err != nil {
		log.Printf("webhook: plan display lookup failed for price %s, skipping confirmation email: %v", priceID, err)
		return
	}

	if err := s.mailer.SendSubscriptionConfirmed(email, firstName, display.PlanName, display.Price); err != nil {
		log.Printf("webhook: confirmation email to %s failed: %v", email, err)
		return
	}
	log.Printf("webhook: confirmation email sent to %s", email)
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) Result {
	subscriptionID, err := eventObjectID(event)
	if err != nil {
		return Fatal(err)
	}

	sub, err := s.authoritativeSubscription(ctx, subscriptionID)
	if err != nil {
		return Retryable(fmt.Errorf("fetch subscription %s: %w", subscriptionID, err))
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return Fatal(fmt.Errorf("subscription %s has no line items", sub.ID))
	}
	item := sub.Items.Data[0]

	fields := map[string]interface{}{
		"status":            string(sub.Status),
		"last_payment_date": time.Unix(item.CurrentPeriodStart, 0),
		"next_payment_date": time.Unix(item.CurrentPeriodEnd, 0),
	}
	// Cancellation is a side effect of the status update, taken only when the
	// provider reports a cancellation timestamp.
	if sub.CanceledAt > 0 {
		fields["cancelled_at"] = time.Unix(sub.CanceledAt, 0)
	}

	rows, err := s.repo.UpdateSubscriptionByProviderID(sub.ID, fields)
	if err != nil {
		return Retryable(fmt.Errorf("update subscription %s: %w", sub.ID, err))
	}
	if rows == 0 {
		// Update arrived before its created event was processed. Acknowledge;
		// the provider's next update or the created event will converge state.
		log.Printf("webhook: no subscription record for %s, update acknowledged as no-op", sub.ID)
		return Processed()
	}

	log.Printf("webhook: subscription %s status set to %s", sub.ID, sub.Status)
	return Processed()
}

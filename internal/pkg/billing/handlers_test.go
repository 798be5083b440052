package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/andrewwildgoose/nappio-backend/app/models"
)

type fakeRepo struct {
	sessionsByCustomer map[string]*models.CheckoutSession
	sessionsBySession  map[string]*models.CheckoutSession
	sessionLookupErr   error

	statusUpdates    map[string]string
	statusUpdateRows int64
	statusUpdateErr  error

	upserts   []*models.UserSubscription
	upsertErr error

	fieldUpdates map[string]map[string]interface{}
	fieldRows    int64
	fieldErr     error

	storedEvents map[string]*models.WebhookEvent
	nextEventID  uint

	marked map[uint]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessionsByCustomer: map[string]*models.CheckoutSession{},
		sessionsBySession:  map[string]*models.CheckoutSession{},
		statusUpdates:      map[string]string{},
		fieldUpdates:       map[string]map[string]interface{}{},
		storedEvents:       map[string]*models.WebhookEvent{},
		marked:             map[uint]string{},
	}
}

func (r *fakeRepo) CreateSession(sess *models.CheckoutSession) error {
	r.sessionsBySession[sess.SessionID] = sess
	r.sessionsByCustomer[sess.CustomerID] = sess
	return nil
}

func (r *fakeRepo) GetSessionBySessionID(sessionID string) (*models.CheckoutSession, error) {
	if sess, ok := r.sessionsBySession[sessionID]; ok {
		return sess, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetSessionByCustomerID(customerID string) (*models.CheckoutSession, error) {
	if r.sessionLookupErr != nil {
		return nil, r.sessionLookupErr
	}
	if sess, ok := r.sessionsByCustomer[customerID]; ok {
		return sess, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpdateSessionStatus(sessionID, status string) (int64, error) {
	if r.statusUpdateErr != nil {
		return 0, r.statusUpdateErr
	}
	r.statusUpdates[sessionID] = status
	return r.statusUpdateRows, nil
}

func (r *fakeRepo) UpsertSubscription(sub *models.UserSubscription) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts = append(r.upserts, sub)
	return nil
}

func (r *fakeRepo) UpdateSubscriptionByProviderID(subscriptionID string, fields map[string]interface{}) (int64, error) {
	if r.fieldErr != nil {
		return 0, r.fieldErr
	}
	r.fieldUpdates[subscriptionID] = fields
	return r.fieldRows, nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := r.storedEvents[key]; ok {
		return false, existing, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	r.storedEvents[key] = event
	return true, event, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.marked[id] = processingError
	return nil
}

type fakeClient struct {
	subscriptions map[string]*stripe.Subscription
	subErr        error

	checkoutSessions map[string]*stripe.CheckoutSession
	sessionErr       error

	prices   map[string]*stripe.Price
	products map[string]*stripe.Product

	constructed  stripe.Event
	constructErr error
}

func (c *fakeClient) CreateCustomer(ctx context.Context, email, userID string) (*stripe.Customer, error) {
	return &stripe.Customer{ID: "cus_fake", Email: email}, nil
}

func (c *fakeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL, userID string) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: "cs_fake", URL: "https://checkout.example/cs_fake"}, nil
}

func (c *fakeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	if sess, ok := c.checkoutSessions[sessionID]; ok {
		return sess, nil
	}
	return nil, fmt.Errorf("no such session %s", sessionID)
}

func (c *fakeClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	if sub, ok := c.subscriptions[subscriptionID]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("no such subscription %s", subscriptionID)
}

func (c *fakeClient) GetPrice(ctx context.Context, priceID string) (*stripe.Price, error) {
	if price, ok := c.prices[priceID]; ok {
		return price, nil
	}
	return nil, fmt.Errorf("no such price %s", priceID)
}

func (c *fakeClient) GetProduct(ctx context.Context, productID string) (*stripe.Product, error) {
	if product, ok := c.products[productID]; ok {
		return product, nil
	}
	return nil, fmt.Errorf("no such product %s", productID)
}

func (c *fakeClient) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if c.constructErr != nil {
		return stripe.Event{}, c.constructErr
	}
	return c.constructed, nil
}

type fakeProfiles struct {
	email     string
	firstName string
	err       error
}

func (p *fakeProfiles) GetUserProfile(ctx context.Context, userID string) (string, string, error) {
	return p.email, p.firstName, p.err
}

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) SendSubscriptionConfirmed(to, firstName, planName, priceDisplay string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type fakeCache struct {
	values map[string]string
}

func (c *fakeCache) Get(key string) (string, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return "", errors.New("cache miss")
}

func (c *fakeCache) Set(key string, value interface{}, expiration time.Duration) error {
	if c.values == nil {
		c.values = map[string]string{}
	}
	c.values[key] = fmt.Sprint(value)
	return nil
}

func subscriptionEvent(eventType, subscriptionID string) *stripe.Event {
	raw, _ := json.Marshal(map[string]string{"id": subscriptionID})
	return &stripe.Event{
		ID:   "evt_" + subscriptionID,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func activeSubscription(id, customerID string) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Status:   stripe.SubscriptionStatusActive,
		Created:  1700000000,
		Customer: &stripe.Customer{ID: customerID},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: 1700000000,
					CurrentPeriodEnd:   1702592000,
					Price: &stripe.Price{
						ID:       "price_basic",
						Metadata: map[string]string{"plan_id": "basic"},
					},
				},
			},
		},
	}
}

func TestDispatchUnknownEventTypeIgnored(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeClient{}, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent("invoice.finalized", "in_1"))
	if res.Outcome != OutcomeIgnored {
		t.Fatalf("expected unknown event type to be ignored, got %v", res.Outcome)
	}
}

func TestDispatchMalformedPayloadIsFatal(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeClient{}, nil, nil, nil)

	event := &stripe.Event{
		ID:   "evt_bad",
		Type: stripe.EventType(EventSubscriptionCreated),
		Data: &stripe.EventData{Raw: json.RawMessage(`{not json`)},
	}
	res := svc.Dispatch(context.Background(), event)
	if res.Outcome != OutcomeFatal {
		t.Fatalf("expected malformed payload to be fatal, got %v", res.Outcome)
	}
}

func TestCheckoutCompletedUpdatesStoredSession(t *testing.T) {
	repo := newFakeRepo()
	repo.statusUpdateRows = 1
	client := &fakeClient{
		checkoutSessions: map[string]*stripe.CheckoutSession{
			"cs_1": {ID: "cs_1", Status: stripe.CheckoutSessionStatusComplete},
		},
	}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventCheckoutSessionCompleted, "cs_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %v (err=%v)", res.Outcome, res.Err)
	}
	if got := repo.statusUpdates["cs_1"]; got != string(stripe.CheckoutSessionStatusComplete) {
		t.Fatalf("expected session status %q, got %q", stripe.CheckoutSessionStatusComplete, got)
	}
}

func TestCheckoutCompletedUnknownSessionAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	repo.statusUpdateRows = 0
	client := &fakeClient{
		checkoutSessions: map[string]*stripe.CheckoutSession{
			"cs_ghost": {ID: "cs_ghost", Status: stripe.CheckoutSessionStatusComplete},
		},
	}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventCheckoutSessionCompleted, "cs_ghost"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected unknown session to be acknowledged, got %v", res.Outcome)
	}
}

func TestSubscriptionCreatedPersistsAuthoritativeState(t *testing.T) {
	repo := newFakeRepo()
	repo.sessionsByCustomer["cus_1"] = &models.CheckoutSession{
		SessionID:  "cs_1",
		UserID:     "user-42",
		CustomerID: "cus_1",
	}
	client := &fakeClient{
		subscriptions: map[string]*stripe.Subscription{
			"sub_1": activeSubscription("sub_1", "cus_1"),
		},
	}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionCreated, "sub_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %v (err=%v)", res.Outcome, res.Err)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(repo.upserts))
	}
	record := repo.upserts[0]
	if record.UserID != "user-42" {
		t.Fatalf("expected subscription attributed to user-42, got %q", record.UserID)
	}
	if record.PlanID != "basic" || record.PriceID != "price_basic" {
		t.Fatalf("unexpected plan attribution: plan=%q price=%q", record.PlanID, record.PriceID)
	}
	if record.Status != string(stripe.SubscriptionStatusActive) {
		t.Fatalf("expected status from the re-fetched subscription, got %q", record.Status)
	}
	if record.SubscribedAt != time.Unix(1700000000, 0) {
		t.Fatalf("unexpected subscribed_at %v", record.SubscribedAt)
	}
	if record.LastPaymentDate == nil || record.NextPaymentDate == nil {
		t.Fatalf("expected payment dates to be set")
	}
}

func TestSubscriptionCreatedFetchFailureIsRetryable(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeClient{subErr: errors.New("provider unavailable")}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionCreated, "sub_1"))
	if res.Outcome != OutcomeRetryable {
		t.Fatalf("expected retryable, got %v", res.Outcome)
	}
	if len(repo.upserts) != 0 {
		t.Fatalf("expected no upsert after fetch failure")
	}
}

func TestSubscriptionCreatedWithoutSessionIsFatal(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeClient{
		subscriptions: map[string]*stripe.Subscription{
			"sub_1": activeSubscription("sub_1", "cus_unknown"),
		},
	}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionCreated, "sub_1"))
	if res.Outcome != OutcomeFatal {
		t.Fatalf("expected fatal when no checkout session exists for the customer, got %v", res.Outcome)
	}
	if len(repo.upserts) != 0 {
		t.Fatalf("expected no upsert without user attribution")
	}
}

func TestSubscriptionCreatedMissingPlanMetadataIsFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.sessionsByCustomer["cus_1"] = &models.CheckoutSession{UserID: "user-42", CustomerID: "cus_1"}
	sub := activeSubscription("sub_1", "cus_1")
	sub.Items.Data[0].Price.Metadata = map[string]string{}
	client := &fakeClient{subscriptions: map[string]*stripe.Subscription{"sub_1": sub}}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionCreated, "sub_1"))
	if res.Outcome != OutcomeFatal {
		t.Fatalf("expected fatal on missing plan metadata, got %v", res.Outcome)
	}
}

func TestSubscriptionCreatedMailFailureStaysProcessed(t *testing.T) {
	repo := newFakeRepo()
	repo.sessionsByCustomer["cus_1"] = &models.CheckoutSession{UserID: "user-42", CustomerID: "cus_1"}
	client := &fakeClient{
		subscriptions: map[string]*stripe.Subscription{"sub_1": activeSubscription("sub_1", "cus_1")},
		prices: map[string]*stripe.Price{
			"price_basic": {ID: "price_basic", UnitAmount: 999, Currency: stripe.CurrencyGBP, Product: &stripe.Product{ID: "prod_1"}},
		},
		products: map[string]*stripe.Product{"prod_1": {ID: "prod_1", Name: "Basic Box"}},
	}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	profiles := &fakeProfiles{email: "jo@example.com", firstName: "Jo"}
	svc := NewService(repo, client, profiles, mailer, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionCreated, "sub_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected mail failure to stay processed, got %v (err=%v)", res.Outcome, res.Err)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("expected subscription persisted despite mail failure")
	}
}

func TestSubscriptionCreatedSendsConfirmationEmail(t *testing.T) {
	repo := newFakeRepo()
	repo.sessionsByCustomer["cus_1"] = &models.CheckoutSession{UserID: "user-42", CustomerID: "cus_1"}
	client := &fakeClient{
		subscriptions: map[string]*stripe.Subscription{"sub_1": activeSubscription("sub_1", "cus_1")},
		prices: map[string]*stripe.Price{
			"price_basic": {ID: "price_basic", UnitAmount: 999, Currency: stripe.CurrencyGBP, Product: &stripe.Product{ID: "prod_1"}},
		},
		products: map[string]*stripe.Product{"prod_1": {ID: "prod_1", Name: "Basic Box"}},
	}
	mailer := &fakeMailer{}
	profiles := &fakeProfiles{email: "jo@example.com", firstName: "Jo"}
	svc := NewService(repo, client, profiles, mailer, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionCreated, "sub_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %v (err=%v)", res.Outcome, res.Err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "jo@example.com" {
		t.Fatalf("expected confirmation email to jo@example.com, got %v", mailer.sent)
	}
}

func TestSubscriptionUpdatedWritesAuthoritativeFields(t *testing.T) {
	repo := newFakeRepo()
	repo.fieldRows = 1
	sub := activeSubscription("sub_1", "cus_1")
	sub.Status = stripe.SubscriptionStatusPastDue
	client := &fakeClient{subscriptions: map[string]*stripe.Subscription{"sub_1": sub}}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionUpdated, "sub_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %v (err=%v)", res.Outcome, res.Err)
	}
	fields := repo.fieldUpdates["sub_1"]
	if fields == nil {
		t.Fatalf("expected field update for sub_1")
	}
	if fields["status"] != string(stripe.SubscriptionStatusPastDue) {
		t.Fatalf("expected past_due status, got %v", fields["status"])
	}
	if _, ok := fields["cancelled_at"]; ok {
		t.Fatalf("cancelled_at must not be written without a cancellation timestamp")
	}
}

func TestSubscriptionDeletedRecordsCancellation(t *testing.T) {
	repo := newFakeRepo()
	repo.fieldRows = 1
	sub := activeSubscription("sub_1", "cus_1")
	sub.Status = stripe.SubscriptionStatusCanceled
	sub.CanceledAt = 1701000000
	client := &fakeClient{subscriptions: map[string]*stripe.Subscription{"sub_1": sub}}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionDeleted, "sub_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %v (err=%v)", res.Outcome, res.Err)
	}
	fields := repo.fieldUpdates["sub_1"]
	if fields["cancelled_at"] != time.Unix(1701000000, 0) {
		t.Fatalf("expected cancelled_at %v, got %v", time.Unix(1701000000, 0), fields["cancelled_at"])
	}
}

func TestSubscriptionUpdatedBeforeCreatedIsAcknowledgedNoOp(t *testing.T) {
	repo := newFakeRepo()
	repo.fieldRows = 0
	client := &fakeClient{subscriptions: map[string]*stripe.Subscription{"sub_1": activeSubscription("sub_1", "cus_1")}}
	svc := NewService(repo, client, nil, nil, nil)

	res := svc.Dispatch(context.Background(), subscriptionEvent(EventSubscriptionUpdated, "sub_1"))
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("expected out-of-order update to be acknowledged, got %v", res.Outcome)
	}
	if len(repo.upserts) != 0 {
		t.Fatalf("out-of-order update must not create a subscription row")
	}
}

package billing

import (
	"context"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v82"
)

func TestRecordWebhookEventDeduplicatesByProviderEventID(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeClient{}, nil, nil, nil)

	in := WebhookEventInput{
		Provider:        "Stripe",
		ProviderEventID: "evt_1",
		EventType:       "customer.subscription.created",
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}

	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected first delivery to be created")
	}
	if stored.Provider != "stripe" {
		t.Fatalf("expected provider to be normalized, got %q", stored.Provider)
	}

	created, replay, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if created {
		t.Fatalf("expected replay to be deduplicated")
	}
	if replay.ID != stored.ID {
		t.Fatalf("expected replay to return the original row")
	}
}

func TestRecordWebhookEventFallsBackToPayloadHash(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeClient{}, nil, nil, nil)

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    "stripe",
		PayloadJSON: `{"some":"payload"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected event to be created")
	}
	if !strings.HasPrefix(stored.ProviderEventID, "hash:") {
		t.Fatalf("expected hash fallback event ID, got %q", stored.ProviderEventID)
	}
}

func TestRecordWebhookEventRequiresProvider(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeClient{}, nil, nil, nil)

	if _, _, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{PayloadJSON: "{}"}); err == nil {
		t.Fatalf("expected missing provider to be rejected")
	}
}

func TestGetPlanDisplayCachesProviderLookup(t *testing.T) {
	client := &fakeClient{
		prices: map[string]*stripe.Price{
			"price_basic": {ID: "price_basic", UnitAmount: 999, Currency: stripe.CurrencyGBP, Product: &stripe.Product{ID: "prod_1"}},
		},
		products: map[string]*stripe.Product{"prod_1": {ID: "prod_1", Name: "Basic Box"}},
	}
	cache := &fakeCache{values: map[string]string{}}
	svc := NewService(newFakeRepo(), client, nil, nil, cache)

	display, err := svc.GetPlanDisplay(context.Background(), "price_basic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if display.PlanName != "Basic Box" || display.Price != "GBP 9.99" {
		t.Fatalf("unexpected display %+v", display)
	}

	// Second lookup must be served from the cache even when the provider no
	// longer knows the price.
	client.prices = map[string]*stripe.Price{}
	cached, err := svc.GetPlanDisplay(context.Background(), "price_basic")
	if err != nil {
		t.Fatalf("expected cached lookup to succeed: %v", err)
	}
	if cached.PlanName != "Basic Box" {
		t.Fatalf("unexpected cached display %+v", cached)
	}
}

func TestFormatUnitAmount(t *testing.T) {
	tests := []struct {
		currency string
		amount   int64
		want     string
	}{
		{currency: "gbp", amount: 999, want: "GBP 9.99"},
		{currency: "eur", amount: 1250, want: "EUR 12.50"},
		{currency: "usd", amount: 50, want: "USD 0.50"},
	}

	for _, tt := range tests {
		if got := formatUnitAmount(tt.currency, tt.amount); got != tt.want {
			t.Fatalf("formatUnitAmount(%q, %d) = %q, want %q", tt.currency, tt.amount, got, tt.want)
		}
	}
}

package billing

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
)

// ProviderClient is the surface of the billing provider we depend on. The
// webhook payload is only ever a trigger; state fields are re-fetched through
// this client so the provider's live state stays the single source of truth.
type ProviderClient interface {
	CreateCustomer(ctx context.Context, email, userID string) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL, userID string) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	GetPrice(ctx context.Context, priceID string) (*stripe.Price, error)
	GetProduct(ctx context.Context, productID string) (*stripe.Product, error)
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// StripeClient implements ProviderClient over the Stripe REST API.
type StripeClient struct {
	webhookSecret string
}

// NewStripeClientFromEnv wires the Stripe API key from the environment.
func NewStripeClientFromEnv() *StripeClient {
	stripe.Key = env.GetEnv("STRIPE_SECRET_KEY", "")
	return &StripeClient{
		webhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	}
}

func (c *StripeClient) CreateCustomer(ctx context.Context, email, userID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	return customer.New(params)
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL, userID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	return checkoutsession.New(params)
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	return checkoutsession.Get(sessionID, params)
}

func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(subscriptionID, params)
}

func (c *StripeClient) GetPrice(ctx context.Context, priceID string) (*stripe.Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	return price.Get(priceID, params)
}

func (c *StripeClient) GetProduct(ctx context.Context, productID string) (*stripe.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	return product.Get(productID, params)
}

func (c *StripeClient) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		c.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
}

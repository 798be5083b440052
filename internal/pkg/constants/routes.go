package constants

// Static route constants
const (
	APIPrefix = "/api"
	APIv1     = "/v1"

	NewsletterSubscribeRoute = "/subscribe"
	NewsletterVerifyRoute    = "/verify"

	PaymentsWebhookRoute        = "/payments/webhook"
	CheckoutSessionRoute        = "/checkout-session"
	CheckoutSessionDetailsRoute = "/session/:session_id/details"

	UserSubscriptionsRoute   = "/subscriptions"
	SubscriptionAddressRoute = "/subscriptions/:subscription_id/address"
	UserAddressesRoute       = "/addresses"
	UserAddressByIDRoute     = "/addresses/:address_id"
)

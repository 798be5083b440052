package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/andrewwildgoose/nappio-backend/app/controllers"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/constants"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/identity"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/middleware"
)

// apiVerifier is built once during HttpRouter installation
var apiVerifier *identity.Verifier

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIPrefix, limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
	}))
	api.Use(cors.New(cors.Config{
		AllowOrigins: env.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	v1 := api.Group(constants.APIv1)

	// Public endpoints
	newsletter := v1.Group("/newsletter")
	newsletter.Post(constants.NewsletterSubscribeRoute, controllers.HandleNewsletterSubscribe)
	// GET serves the link in the confirmation email, POST the frontend form
	newsletter.Get(constants.NewsletterVerifyRoute, controllers.HandleNewsletterVerify)
	newsletter.Post(constants.NewsletterVerifyRoute, controllers.HandleNewsletterVerify)

	// Webhook endpoint authenticates via provider signature, not bearer token
	v1.Post(constants.PaymentsWebhookRoute, controllers.HandleBillingWebhook)

	// Authenticated endpoints
	auth := middleware.BearerAuthMiddleware(apiVerifier)

	payments := v1.Group("/payments", auth)
	payments.Post(constants.CheckoutSessionRoute, controllers.HandleCreateCheckoutSession)
	payments.Get(constants.CheckoutSessionDetailsRoute, controllers.HandleSessionDetails)

	user := v1.Group("/user", auth)
	user.Get(constants.UserSubscriptionsRoute, controllers.HandleGetUserSubscriptions)
	user.Post(constants.SubscriptionAddressRoute, controllers.HandleAssignSubscriptionAddress)
	user.Get(constants.UserAddressesRoute, controllers.HandleGetAddresses)
	user.Post(constants.UserAddressesRoute, controllers.HandleCreateAddress)
	user.Delete(constants.UserAddressByIDRoute, controllers.HandleDeleteAddress)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

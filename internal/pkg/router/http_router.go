package router

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/andrewwildgoose/nappio-backend/app/controllers"
	"github.com/andrewwildgoose/nappio-backend/app/repository"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/database"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/identity"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Initialize repositories before any controller uses them
	repository.InitializeFactory(database.GetDB())

	// Initialize the billing service and provider client
	controllers.InitializePaymentController()

	// Build the token verifier shared by the protected API routes
	verifier, err := identity.NewVerifierFromEnv()
	if err != nil {
		log.Printf("[Router] Token verifier unavailable, protected routes will reject requests: %v", err)
	}
	apiVerifier = verifier

	health := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"service": env.GetEnv("SERVICE_NAME", "nappio-backend"),
			"version": env.GetEnv("APP_VERSION", "dev"),
		})
	}
	app.Get("/", health)
	app.Get("/health", health)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/andrewwildgoose/nappio-backend/internal/pkg/identity"
	"github.com/andrewwildgoose/nappio-backend/internal/pkg/usercontext"
)

// BearerAuthMiddleware enforces a verified identity-provider JWT and injects
// the resulting user context for downstream handlers.
func BearerAuthMiddleware(verifier *identity.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if verifier == nil {
			log.Print("auth middleware: verifier not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "auth not configured",
			})
		}

		token, ok := ExtractBearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "missing or malformed authorization header",
			})
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Printf("auth failure: %v path=%s", err, c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid token",
			})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     claims.Subject,
			Email:      claims.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}

// ExtractBearerToken pulls the token out of an Authorization header value.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

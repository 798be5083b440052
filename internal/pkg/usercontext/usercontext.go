package usercontext

import "github.com/gofiber/fiber/v2"

// Locals key under which the middleware stores the request's user context.
const ContextKey = "USER_CONTEXT"

// UserContext represents the authenticated identity for a request. UserID is
// the identity provider's subject, not a local row id.
type UserContext struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// GetUserContext retrieves the user context from fiber context.
// Returns a default anonymous context if none is set.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false}
}

// SetUserContext stores the user context for downstream handlers.
func SetUserContext(c *fiber.Ctx, ctx UserContext) {
	c.Locals(ContextKey, ctx)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or empty string if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

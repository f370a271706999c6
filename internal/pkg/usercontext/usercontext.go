package usercontext

import "github.com/gofiber/fiber/v2"

// Shared Locals keys used across controllers and middlewares
const (
	ContextKey     = "USER_CONTEXT"
	KeyClerkUserID = "clerk_user_id"
)

// UserContext represents the authenticated caller for a request
type UserContext struct {
	ClerkUserID     string `json:"clerk_user_id"`
	SessionID       string `json:"session_id"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsAuthenticated: false}
}

// IsAuthenticated checks if the current request carries a verified identity
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAuthenticated
}

// GetClerkUserID returns the caller's Clerk user id, or empty string if anonymous
func GetClerkUserID(c *fiber.Ctx) string {
	return GetUserContext(c).ClerkUserID
}

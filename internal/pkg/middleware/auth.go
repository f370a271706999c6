package middleware

import (
	"strings"

	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gofiber/fiber/v2"

	"github.com/resumebase/resumebase/internal/pkg/usercontext"
)

// ClerkAuthMiddleware authenticates requests carrying a Clerk session token.
// The token's signature is checked against the instance's JWKS, which the
// SDK fetches from Clerk during verification.
func ClerkAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}

		claims, err := clerkjwt.Verify(c.Context(), &clerkjwt.VerifyParams{
			Token: token,
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid session token"})
		}

		userCtx := usercontext.UserContext{
			ClerkUserID:     claims.RegisteredClaims.Subject,
			SessionID:       claims.SessionID,
			IsAuthenticated: true,
		}
		c.Locals(usercontext.ContextKey, userCtx)
		c.Locals(usercontext.KeyClerkUserID, claims.RegisteredClaims.Subject)

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

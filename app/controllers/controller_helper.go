package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// contextWithTimeout derives a request-scoped context capped at d.
func contextWithTimeout(c *fiber.Ctx, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), d)
}

// formatTimePtr renders an optional timestamp as RFC3339 for JSON replies.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

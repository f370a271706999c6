package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resumebase/resumebase/app/repository"
	"github.com/resumebase/resumebase/internal/pkg/subscription"
	"github.com/resumebase/resumebase/internal/pkg/usercontext"
)

const subscriptionTimeout = 20 * time.Second

// SubscriptionController exposes the authenticated billing surface: status
// reads plus checkout and portal session creation.
type SubscriptionController struct {
	subs *subscription.Service
}

func NewSubscriptionController(subs *subscription.Service) *SubscriptionController {
	return &SubscriptionController{subs: subs}
}

// HandleStatus returns the caller's subscription tier and status.
func (sc *SubscriptionController) HandleStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}

	ctx, cancel := contextWithTimeout(c, subscriptionTimeout)
	defer cancel()

	status, err := sc.subs.Status(ctx, userCtx.ClerkUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found", "message": "No account for this user"})
		}
		log.Printf("subscription status lookup failed for %s: %v", userCtx.ClerkUserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Status lookup failed"})
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

// HandleCreateCheckoutSession mints a Stripe checkout redirect for the
// caller.
func (sc *SubscriptionController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}

	ctx, cancel := contextWithTimeout(c, subscriptionTimeout)
	defer cancel()

	session, err := sc.subs.CreateCheckoutSession(ctx, userCtx.ClerkUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found", "message": "No account for this user"})
		}
		log.Printf("checkout session creation failed for %s: %v", userCtx.ClerkUserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed", "message": "Could not create checkout session"})
	}

	return c.Status(fiber.StatusOK).JSON(session)
}

// HandleCreatePortalSession mints a Stripe billing portal redirect so the
// caller can manage or cancel an existing subscription.
func (sc *SubscriptionController) HandleCreatePortalSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}

	ctx, cancel := contextWithTimeout(c, subscriptionTimeout)
	defer cancel()

	url, err := sc.subs.CreatePortalSession(ctx, userCtx.ClerkUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found", "message": "No account for this user"})
		}
		if errors.Is(err, subscription.ErrNoCustomer) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_customer", "message": "No billing profile yet, complete a checkout first"})
		}
		log.Printf("portal session creation failed for %s: %v", userCtx.ClerkUserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "portal_failed", "message": "Could not create portal session"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"portal_url": url})
}

package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resumebase/resumebase/app/repository"
	"github.com/resumebase/resumebase/internal/pkg/usercontext"
)

// UserController serves the authenticated account surface.
type UserController struct {
	users repository.UserRepository
}

func NewUserController(users repository.UserRepository) *UserController {
	return &UserController{users: users}
}

// HandleGetAccount returns account information for the authenticated user.
func (uc *UserController) HandleGetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	account, err := uc.users.GetByClerkUserID(userCtx.ClerkUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	response := fiber.Map{
		"id":            account.ID,
		"clerk_user_id": account.ClerkUserID,
		"email":         account.Email,
		"first_name":    account.FirstName,
		"last_name":     account.LastName,
		"username":      account.Username,
		"image_url":     account.ProfileImageURL,
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_sign_in":  formatTimePtr(account.LastSignInAt),
		"subscription": fiber.Map{
			"tier":     account.SubscriptionTier,
			"status":   account.SubscriptionStatus,
			"end_date": formatTimePtr(account.SubscriptionEndDate),
			"is_pro":   account.IsPro(),
		},
	}

	return c.JSON(response)
}

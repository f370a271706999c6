package repository

import (
	"errors"

	"github.com/resumebase/resumebase/app/models"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when a lookup resolves to no user row.
var ErrUserNotFound = errors.New("user not found")

// ErrConcurrencyConflict is returned when an optimistic update lost the race
// against a concurrent writer; callers re-read and retry.
var ErrConcurrencyConflict = errors.New("concurrent update conflict")

// UserRepository defines the keyed access paths to the users table.
type UserRepository interface {
	GetByClerkUserID(clerkUserID string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	// Upsert inserts the user keyed by clerk_user_id, overwriting profile
	// fields when the row already exists (duplicate delivery of user.created).
	Upsert(user *models.User) error
	// Update writes all mutable fields guarded by the row version the caller
	// read; fails with ErrConcurrencyConflict when the row moved on.
	Update(user *models.User) error
	DeleteByClerkUserID(clerkUserID string) error
}

// WebhookEventRepository persists webhook deliveries for deduplication.
type WebhookEventRepository interface {
	// CreateIfNotExists inserts the event unless the (provider, delivery id)
	// pair is already stored. Returns whether the row was created plus the
	// stored row either way.
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}

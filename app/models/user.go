package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TIER_FREE = "free"
	TIER_PRO  = "pro"

	SUB_STATUS_ACTIVE   = "active"
	SUB_STATUS_TRIALING = "trialing"
	SUB_STATUS_PAST_DUE = "past_due"
	SUB_STATUS_CANCELED = "canceled"
)

// User mirrors one Clerk account plus its Stripe subscription state.
// Identity/profile fields are written by Clerk webhook events only,
// subscription fields by Stripe webhook events only.
type User struct {
	ID              string  `gorm:"type:uuid;primaryKey" json:"id"`
	ClerkUserID     string  `gorm:"type:varchar(191);uniqueIndex;not null" json:"clerk_user_id" validate:"required"`
	Email           string  `gorm:"type:varchar(200);uniqueIndex;not null" json:"email" validate:"required,email,max=200"`
	FirstName       *string `gorm:"type:varchar(150);default:null" json:"first_name,omitempty"`
	LastName        *string `gorm:"type:varchar(150);default:null" json:"last_name,omitempty"`
	ProfileImageURL *string `gorm:"type:varchar(500);default:null" json:"profile_image_url,omitempty"`
	Username        *string `gorm:"type:varchar(150);default:null" json:"username,omitempty"`

	SubscriptionTier   string `gorm:"type:varchar(10);not null;default:'free'" json:"subscription_tier" validate:"oneof=free pro"`
	SubscriptionStatus string `gorm:"type:varchar(32);not null;default:'active'" json:"subscription_status"`
	// StripeCustomerID is set once the first checkout completes and is never
	// reassigned to a different user afterwards (partial unique index in the
	// SQL migration; GORM cannot express it).
	StripeCustomerID      string     `gorm:"type:varchar(191);default:'';index" json:"stripe_customer_id"`
	StripeSubscriptionID  string     `gorm:"type:varchar(191);default:'';index" json:"stripe_subscription_id"`
	SubscriptionStartDate *time.Time `gorm:"type:timestamptz;default:null" json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `gorm:"type:timestamptz;default:null" json:"subscription_end_date,omitempty"`
	// SubscriptionUpdatedAt is the provider event timestamp of the last
	// billing event applied to this row. Billing events older than this are
	// discarded so a delayed "subscription updated" cannot clobber a newer
	// "subscription deleted".
	SubscriptionUpdatedAt *time.Time `gorm:"type:timestamptz;default:null" json:"subscription_updated_at,omitempty"`

	LastSignInAt *time.Time `gorm:"type:timestamptz;default:null" json:"last_sign_in_at,omitempty"`
	// RowVersion guards read-modify-write cycles; every update must match the
	// version it read and bumps it by one.
	RowVersion uint      `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsPro reports whether the user currently has paid access.
func (u *User) IsPro() bool {
	return u.SubscriptionTier == TIER_PRO && u.SubscriptionStatus == SUB_STATUS_ACTIVE
}

package repository

import (
	"errors"

	"github.com/resumebase/resumebase/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByClerkUserID(clerkUserID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("clerk_user_id = ?", clerkUserID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByStripeCustomerID(customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, ErrUserNotFound
	}
	var user models.User
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Upsert(user *models.User) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "clerk_user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"first_name",
			"last_name",
			"profile_image_url",
			"username",
			"last_sign_in_at",
			"updated_at",
		}),
	}).Create(user).Error; err != nil {
		return err
	}

	// Ensure ID and row version are populated after upsert.
	return r.db.Where("clerk_user_id = ?", user.ClerkUserID).First(user).Error
}

func (r *userRepository) Update(user *models.User) error {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND row_version = ?", user.ID, user.RowVersion).
		Updates(map[string]interface{}{
			"email":                   user.Email,
			"first_name":              user.FirstName,
			"last_name":               user.LastName,
			"profile_image_url":       user.ProfileImageURL,
			"username":                user.Username,
			"subscription_tier":       user.SubscriptionTier,
			"subscription_status":     user.SubscriptionStatus,
			"stripe_customer_id":      user.StripeCustomerID,
			"stripe_subscription_id":  user.StripeSubscriptionID,
			"subscription_start_date": user.SubscriptionStartDate,
			"subscription_end_date":   user.SubscriptionEndDate,
			"subscription_updated_at": user.SubscriptionUpdatedAt,
			"last_sign_in_at":         user.LastSignInAt,
			"row_version":             user.RowVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrencyConflict
	}
	user.RowVersion++
	return nil
}

func (r *userRepository) DeleteByClerkUserID(clerkUserID string) error {
	return r.db.Where("clerk_user_id = ?", clerkUserID).Delete(&models.User{}).Error
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/resumebase/resumebase/app/models"
	"github.com/resumebase/resumebase/app/repository"
	"github.com/resumebase/resumebase/internal/pkg/subscription"
	"github.com/resumebase/resumebase/internal/pkg/webhook"
)

// Config carries the immutable settings the policies need.
type Config struct {
	// MonitoredPriceID is the Stripe price whose subscriptions entitle the
	// pro tier; subscriptions on other prices map to free.
	MonitoredPriceID string
}

type policyFunc func(ctx context.Context, ev *webhook.Event) error

// Reconciler applies decoded webhook events to the user store, one policy
// per event kind. Every policy is idempotent: re-applying a delivery with
// the same values leaves the stored state unchanged.
type Reconciler struct {
	users    repository.UserRepository
	cfg      Config
	policies map[webhook.Kind]policyFunc

	// Invalidate is called with the affected clerk user id after a policy
	// mutated the row; the subscription service hooks its status cache here.
	Invalidate func(clerkUserID string)
}

// NewReconciler builds the policy dispatch table over the given store.
func NewReconciler(users repository.UserRepository, cfg Config) *Reconciler {
	r := &Reconciler{users: users, cfg: cfg}
	r.policies = map[webhook.Kind]policyFunc{
		webhook.KindUserCreated:         r.applyUserCreated,
		webhook.KindUserUpdated:         r.applyUserUpdated,
		webhook.KindUserDeleted:         r.applyUserDeleted,
		webhook.KindCheckoutCompleted:   r.applyCheckoutCompleted,
		webhook.KindSubscriptionUpdated: r.applySubscriptionUpdated,
		webhook.KindSubscriptionDeleted: r.applySubscriptionDeleted,
	}
	return r
}

// Apply routes the event to its policy. Unknown and ignored kinds are
// successful no-ops. A lost optimistic-concurrency race is retried once
// before surfacing.
func (r *Reconciler) Apply(ctx context.Context, ev *webhook.Event) error {
	policy, ok := r.policies[ev.Kind]
	if !ok {
		return nil
	}
	err := policy(ctx, ev)
	if errors.Is(err, repository.ErrConcurrencyConflict) {
		err = policy(ctx, ev)
	}
	return err
}

func (r *Reconciler) applyUserCreated(ctx context.Context, ev *webhook.Event) error {
	data := ev.User
	if data.Email == "" {
		// The original account has no usable address; nothing to store and
		// nothing a provider retry would fix.
		log.Printf("reconcile: user.created %s without email, skipping", data.ClerkUserID)
		return nil
	}

	user := &models.User{
		ClerkUserID:        data.ClerkUserID,
		Email:              data.Email,
		FirstName:          data.FirstName,
		LastName:           data.LastName,
		ProfileImageURL:    data.ProfileImageURL,
		Username:           data.Username,
		LastSignInAt:       data.LastSignInAt,
		SubscriptionTier:   models.TIER_FREE,
		SubscriptionStatus: models.SUB_STATUS_ACTIVE,
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", webhook.ErrUnrecognizedEvent, err)
	}
	if err := r.users.Upsert(user); err != nil {
		return err
	}
	r.invalidate(user.ClerkUserID)
	return nil
}

func (r *Reconciler) applyUserUpdated(ctx context.Context, ev *webhook.Event) error {
	data := ev.User
	user, err := r.users.GetByClerkUserID(data.ClerkUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Delivered before the creation committed; the provider's
			// user.created retry carries the full profile anyway.
			log.Printf("reconcile: user.updated for unknown user %s, skipping", data.ClerkUserID)
			return nil
		}
		return err
	}

	if data.Email != "" {
		user.Email = data.Email
	}
	user.FirstName = data.FirstName
	user.LastName = data.LastName
	user.ProfileImageURL = data.ProfileImageURL
	user.Username = data.Username
	if data.LastSignInAt != nil {
		user.LastSignInAt = data.LastSignInAt
	}
	if err := r.users.Update(user); err != nil {
		return err
	}
	r.invalidate(user.ClerkUserID)
	return nil
}

func (r *Reconciler) applyUserDeleted(ctx context.Context, ev *webhook.Event) error {
	data := ev.User
	if _, err := r.users.GetByClerkUserID(data.ClerkUserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Already deleted; duplicate deliveries land here.
			return nil
		}
		return err
	}
	if err := r.users.DeleteByClerkUserID(data.ClerkUserID); err != nil {
		return err
	}
	r.invalidate(data.ClerkUserID)
	return nil
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, ev *webhook.Event) error {
	data := ev.Subscription
	user, err := r.users.GetByClerkUserID(data.ClerkUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Paid money with no linked account: surface it so the provider
			// retries and operators notice.
			return fmt.Errorf("checkout completed for unknown user %q: %w", data.ClerkUserID, repository.ErrUserNotFound)
		}
		return err
	}
	if staleBillingEvent(user, ev) {
		return nil
	}

	user.StripeCustomerID = data.CustomerID
	user.StripeSubscriptionID = data.SubscriptionID
	user.SubscriptionTier = models.TIER_PRO
	user.SubscriptionStatus = models.SUB_STATUS_ACTIVE
	user.SubscriptionStartDate = data.PeriodStart
	user.SubscriptionEndDate = data.PeriodEnd
	setBillingClock(user, ev)
	if err := r.users.Update(user); err != nil {
		return err
	}
	r.invalidate(user.ClerkUserID)
	return nil
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, ev *webhook.Event) error {
	data := ev.Subscription
	user, err := r.users.GetByStripeCustomerID(data.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("subscription updated for unknown customer %q: %w", data.CustomerID, repository.ErrUserNotFound)
		}
		return err
	}
	if staleBillingEvent(user, ev) {
		return nil
	}

	status := subscription.NormalizeStatus(data.Status)
	user.SubscriptionStatus = status
	user.SubscriptionTier = subscription.TierForStatus(status, data.PriceID, r.cfg.MonitoredPriceID)
	user.StripeSubscriptionID = data.SubscriptionID
	if data.PeriodEnd != nil {
		user.SubscriptionEndDate = data.PeriodEnd
	}
	setBillingClock(user, ev)
	if err := r.users.Update(user); err != nil {
		return err
	}
	r.invalidate(user.ClerkUserID)
	return nil
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, ev *webhook.Event) error {
	data := ev.Subscription
	user, err := r.users.GetByStripeCustomerID(data.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("subscription deleted for unknown customer %q: %w", data.CustomerID, repository.ErrUserNotFound)
		}
		return err
	}
	if staleBillingEvent(user, ev) {
		return nil
	}

	user.SubscriptionTier = models.TIER_FREE
	user.SubscriptionStatus = models.SUB_STATUS_CANCELED
	user.StripeSubscriptionID = ""
	setBillingClock(user, ev)
	if err := r.users.Update(user); err != nil {
		return err
	}
	r.invalidate(user.ClerkUserID)
	return nil
}

// staleBillingEvent discards a billing event whose provider timestamp is
// older than the last one applied to the row's subscription fields, so a
// delayed "subscription updated" cannot overwrite a newer "subscription
// deleted" that arrived first.
func staleBillingEvent(user *models.User, ev *webhook.Event) bool {
	return user.SubscriptionUpdatedAt != nil &&
		!ev.OccurredAt.IsZero() &&
		ev.OccurredAt.Before(*user.SubscriptionUpdatedAt)
}

func setBillingClock(user *models.User, ev *webhook.Event) {
	if ev.OccurredAt.IsZero() {
		return
	}
	t := ev.OccurredAt
	user.SubscriptionUpdatedAt = &t
}

func (r *Reconciler) invalidate(clerkUserID string) {
	if r.Invalidate != nil {
		r.Invalidate(clerkUserID)
	}
}

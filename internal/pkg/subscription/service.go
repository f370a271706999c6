package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/resumebase/resumebase/app/models"
	"github.com/resumebase/resumebase/app/repository"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ErrNoCustomer is returned when a billing operation needs a Stripe customer
// that was never created for the user (no completed checkout yet).
var ErrNoCustomer = errors.New("no stripe customer for user")

const statusCacheTTL = 30 * time.Second

// Cache is the subset of the cache package the service needs; nil disables
// caching (tests, degraded boot).
type Cache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
	Delete(key string) error
}

// Config carries the Stripe-facing settings, loaded once at boot.
type Config struct {
	PriceIDPro  string
	FrontendURL string
}

// Status is the read-model answering "what tier is this caller".
type Status struct {
	Tier    string  `json:"tier"`
	Status  string  `json:"status"`
	EndDate *string `json:"end_date"`
	IsPro   bool    `json:"is_pro"`
}

// CheckoutSession is the redirect handle minted for a new subscription.
type CheckoutSession struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// Service answers subscription reads and delegates checkout/portal session
// creation to Stripe.
type Service struct {
	users  repository.UserRepository
	stripe *client.API
	cache  Cache
	cfg    Config
}

// NewService creates a subscription service from injected dependencies.
// The stripe client may be nil for pure read paths (tests).
func NewService(users repository.UserRepository, sc *client.API, cache Cache, cfg Config) *Service {
	return &Service{users: users, stripe: sc, cache: cache, cfg: cfg}
}

// Status resolves the caller's subscription state. Reads go through a short
// cache that reconciliation invalidates on every row mutation.
func (s *Service) Status(ctx context.Context, clerkUserID string) (*Status, error) {
	key := statusCacheKey(clerkUserID)
	if s.cache != nil {
		if cached, err := s.cache.Get(key); err == nil {
			var st Status
			if err := json.Unmarshal([]byte(cached), &st); err == nil {
				return &st, nil
			}
		}
	}

	user, err := s.users.GetByClerkUserID(clerkUserID)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Tier:    user.SubscriptionTier,
		Status:  user.SubscriptionStatus,
		EndDate: formatTimePtr(user.SubscriptionEndDate),
		IsPro:   user.IsPro(),
	}
	if s.cache != nil {
		if payload, err := json.Marshal(st); err == nil {
			if err := s.cache.Set(key, string(payload), statusCacheTTL); err != nil {
				log.Printf("subscription: status cache write failed for %s: %v", clerkUserID, err)
			}
		}
	}
	return st, nil
}

// InvalidateStatus drops the cached status for a user; wired into the
// reconciler so webhook-applied changes become visible immediately.
func (s *Service) InvalidateStatus(clerkUserID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(statusCacheKey(clerkUserID)); err != nil {
		log.Printf("subscription: status cache invalidation failed for %s: %v", clerkUserID, err)
	}
}

// CreateCheckoutSession mints a Stripe checkout session for the pro price,
// creating the Stripe customer on first use. The clerk user id rides along
// in the session metadata so the checkout.completed webhook can link the
// payment back to the account.
func (s *Service) CreateCheckoutSession(ctx context.Context, clerkUserID string) (*CheckoutSession, error) {
	user, err := s.users.GetByClerkUserID(clerkUserID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.getOrCreateCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PriceIDPro),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(3),
		},
		SuccessURL:          stripe.String(s.cfg.FrontendURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(s.cfg.FrontendURL + "/dashboard"),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.AddMetadata("clerk_user_id", user.ClerkUserID)

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}

// CreatePortalSession mints a billing-portal redirect for an existing
// customer.
func (s *Service) CreatePortalSession(ctx context.Context, clerkUserID string) (string, error) {
	user, err := s.users.GetByClerkUserID(clerkUserID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	sess, err := s.stripe.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.FrontendURL + "/dashboard"),
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// SubscriptionPeriod retrieves the current period boundaries and price of a
// subscription from Stripe. Checkout-completed payloads carry no period
// dates, so the webhook pipeline enriches those events here before
// reconciling.
func (s *Service) SubscriptionPeriod(ctx context.Context, subscriptionID string) (start, end *time.Time, priceID string, err error) {
	sub, err := s.stripe.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, nil, "", err
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodStart > 0 {
			t := time.Unix(item.CurrentPeriodStart, 0).UTC()
			start = &t
		}
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			end = &t
		}
		if item.Price != nil {
			priceID = item.Price.ID
		}
	}
	return start, end, priceID, nil
}

func (s *Service) getOrCreateCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(user.Email),
	}
	params.AddMetadata("clerk_user_id", user.ClerkUserID)
	cust, err := s.stripe.Customers.New(params)
	if err != nil {
		return "", err
	}

	user.StripeCustomerID = cust.ID
	if err := s.users.Update(user); err != nil {
		if errors.Is(err, repository.ErrConcurrencyConflict) {
			// A webhook landed in between; re-read and keep whichever
			// customer id won.
			fresh, rerr := s.users.GetByClerkUserID(user.ClerkUserID)
			if rerr != nil {
				return "", rerr
			}
			if fresh.StripeCustomerID != "" {
				return fresh.StripeCustomerID, nil
			}
			fresh.StripeCustomerID = cust.ID
			if uerr := s.users.Update(fresh); uerr != nil {
				return "", uerr
			}
			return cust.ID, nil
		}
		return "", err
	}
	return cust.ID, nil
}

func statusCacheKey(clerkUserID string) string {
	return "subscription:status:" + clerkUserID
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

package webhook

import (
	"errors"
	"time"
)

// ErrUnrecognizedEvent is returned for payloads that cannot be parsed into
// any event shape. Recognized-but-uninteresting event types are NOT errors;
// they decode into KindIgnored.
var ErrUnrecognizedEvent = errors.New("unrecognized webhook payload")

type Provider string

const (
	ProviderClerk  Provider = "clerk"
	ProviderStripe Provider = "stripe"
)

type Kind string

const (
	KindUserCreated         Kind = "user.created"
	KindUserUpdated         Kind = "user.updated"
	KindUserDeleted         Kind = "user.deleted"
	KindCheckoutCompleted   Kind = "checkout.session.completed"
	KindSubscriptionUpdated Kind = "customer.subscription.updated"
	KindSubscriptionDeleted Kind = "customer.subscription.deleted"
	KindIgnored             Kind = "ignored"
)

// Event is one verified, decoded webhook delivery, normalized across
// providers. Exactly one of User/Subscription is set for non-ignored kinds.
type Event struct {
	Provider   Provider
	Kind       Kind
	DeliveryID string
	// OccurredAt is the provider's event timestamp, used as the logical
	// clock for the billing tie-break. Zero when the provider supplies none.
	OccurredAt time.Time

	User         *UserData
	Subscription *SubscriptionData
}

// UserData carries the normalized fields of a Clerk user event.
type UserData struct {
	ClerkUserID     string
	Email           string
	FirstName       *string
	LastName        *string
	ProfileImageURL *string
	Username        *string
	LastSignInAt    *time.Time
}

// SubscriptionData carries the normalized fields of a Stripe billing event.
type SubscriptionData struct {
	// ClerkUserID is only present on checkout events (from session metadata).
	ClerkUserID    string
	CustomerID     string
	SubscriptionID string
	PriceID        string
	Status         string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

type stripeEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// DecodeStripe parses a verified Stripe webhook body into a normalized
// Event. The event id doubles as the delivery id for deduplication; the
// envelope's created timestamp is the logical clock for the billing
// tie-break. Event types outside the subscription lifecycle decode as
// KindIgnored.
func DecodeStripe(raw []byte) (*Event, error) {
	var env stripeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrUnrecognizedEvent)
	}
	// The event id is the dedup key; without it distinct deliveries would
	// collide on one row.
	if env.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrUnrecognizedEvent)
	}

	ev := &Event{
		Provider:   ProviderStripe,
		Kind:       Kind(env.Type),
		DeliveryID: env.ID,
		OccurredAt: fromUnix(env.Created),
	}
	switch ev.Kind {
	case KindCheckoutCompleted:
		var session stripeCheckoutSession
		if err := json.Unmarshal(env.Data.Object, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, err)
		}
		ev.Subscription = &SubscriptionData{
			ClerkUserID:    session.Metadata["clerk_user_id"],
			CustomerID:     session.Customer,
			SubscriptionID: session.Subscription,
		}
	case KindSubscriptionUpdated, KindSubscriptionDeleted:
		var sub stripeSubscription
		if err := json.Unmarshal(env.Data.Object, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, err)
		}
		data := &SubscriptionData{
			CustomerID:     sub.Customer,
			SubscriptionID: sub.ID,
			Status:         sub.Status,
		}
		// Period boundaries live on the subscription items since Stripe's
		// 2025 API versions.
		if len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			data.PriceID = item.Price.ID
			data.PeriodStart = fromUnixPtr(item.CurrentPeriodStart)
			data.PeriodEnd = fromUnixPtr(item.CurrentPeriodEnd)
		}
		ev.Subscription = data
	default:
		ev.Kind = KindIgnored
	}
	return ev, nil
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func fromUnixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

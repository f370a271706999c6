package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

type clerkEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkUserData struct {
	ID                    string              `json:"id"`
	EmailAddresses        []clerkEmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	FirstName             *string             `json:"first_name"`
	LastName              *string             `json:"last_name"`
	ImageURL              *string             `json:"image_url"`
	Username              *string             `json:"username"`
	// Millisecond epoch timestamps, null when the user never signed in.
	LastSignInAt *int64 `json:"last_sign_in_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type clerkDeletedUserData struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DecodeClerk parses a verified Clerk webhook body into a normalized Event.
// Event types outside the user lifecycle decode as KindIgnored.
func DecodeClerk(raw []byte) (*Event, error) {
	var env clerkEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrUnrecognizedEvent)
	}

	ev := &Event{Provider: ProviderClerk, Kind: Kind(env.Type)}
	switch ev.Kind {
	case KindUserCreated, KindUserUpdated:
		var data clerkUserData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, err)
		}
		if data.ID == "" {
			return nil, fmt.Errorf("%w: user event without id", ErrUnrecognizedEvent)
		}
		ev.OccurredAt = fromMillis(data.UpdatedAt)
		ev.User = &UserData{
			ClerkUserID:     data.ID,
			Email:           primaryEmail(data),
			FirstName:       data.FirstName,
			LastName:        data.LastName,
			ProfileImageURL: data.ImageURL,
			Username:        data.Username,
			LastSignInAt:    fromMillisPtr(data.LastSignInAt),
		}
	case KindUserDeleted:
		var data clerkDeletedUserData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, err)
		}
		if data.ID == "" {
			return nil, fmt.Errorf("%w: user event without id", ErrUnrecognizedEvent)
		}
		ev.User = &UserData{ClerkUserID: data.ID}
	default:
		ev.Kind = KindIgnored
	}
	return ev, nil
}

// primaryEmail resolves the address matching primary_email_address_id and
// falls back to the first listed address, like the Clerk payload documents.
func primaryEmail(data clerkUserData) string {
	if data.PrimaryEmailAddressID != "" {
		for _, addr := range data.EmailAddresses {
			if addr.ID == data.PrimaryEmailAddressID {
				return addr.EmailAddress
			}
		}
	}
	if len(data.EmailAddresses) > 0 {
		return data.EmailAddresses[0].EmailAddress
	}
	return ""
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil || *ms == 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

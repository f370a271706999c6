package subscription

import (
	"strings"

	"github.com/resumebase/resumebase/app/models"
)

// TierForStatus maps a Stripe subscription status onto the local tier.
// Only active or trialing subscriptions on the monitored price entitle the
// pro tier; a subscription on some other price never does, whatever its
// status. An empty monitoredPriceID disables the price check (events that
// carry no item data).
func TierForStatus(status, priceID, monitoredPriceID string) string {
	if monitoredPriceID != "" && priceID != "" && priceID != monitoredPriceID {
		return models.TIER_FREE
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SUB_STATUS_ACTIVE, models.SUB_STATUS_TRIALING:
		return models.TIER_PRO
	default:
		return models.TIER_FREE
	}
}

// NormalizeStatus lowercases and trims a provider status, defaulting to
// active for providers that omit it.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return models.SUB_STATUS_ACTIVE
	}
	return s
}

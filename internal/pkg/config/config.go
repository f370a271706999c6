package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/resumebase/resumebase/internal/pkg/env"
)

// Config bundles the provider credentials and product settings the server
// needs at boot. Load fails fast on anything missing so a half-configured
// instance never accepts webhooks it cannot verify.
type Config struct {
	ClerkSecretKey     string `validate:"required"`
	ClerkWebhookSecret string `validate:"required"`

	StripeSecretKey     string `validate:"required"`
	StripeWebhookSecret string `validate:"required"`
	StripePriceIDPro    string `validate:"required"`

	FrontendURL string `validate:"required,url"`
}

func Load() (*Config, error) {
	cfg := &Config{
		ClerkSecretKey:      env.GetEnv("CLERK_SECRET_KEY", ""),
		ClerkWebhookSecret:  env.GetEnv("CLERK_WEBHOOK_SECRET", ""),
		StripeSecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceIDPro:    env.GetEnv("STRIPE_PRICE_ID_PRO", ""),
		FrontendURL:         env.GetEnv("FRONTEND_URL", "http://localhost:3000"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

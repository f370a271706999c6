package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/resumebase/resumebase/app/controllers"
	"github.com/resumebase/resumebase/internal/pkg/cache"
	"github.com/resumebase/resumebase/internal/pkg/env"
	"github.com/resumebase/resumebase/internal/pkg/middleware"
	"github.com/resumebase/resumebase/internal/pkg/usercontext"
)

type ApiRouter struct {
	webhooks      *controllers.WebhookController
	subscriptions *controllers.SubscriptionController
	users         *controllers.UserController
}

func NewApiRouter(webhooks *controllers.WebhookController, subscriptions *controllers.SubscriptionController, users *controllers.UserController) *ApiRouter {
	return &ApiRouter{webhooks: webhooks, subscriptions: subscriptions, users: users}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// Providers retry on non-2xx, so webhook routes stay outside the rate
	// limiter; replay floods die at the dedup table instead.
	webhooks := api.Group("/webhooks")
	webhooks.Post("/clerk", h.webhooks.HandleClerkWebhook)
	webhooks.Post("/stripe", h.webhooks.HandleStripeWebhook)

	auth := middleware.ClerkAuthMiddleware()
	rate := limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := usercontext.GetClerkUserID(c); id != "" {
				return id
			}
			return c.IP()
		},
	})

	subs := api.Group("/subscriptions", auth, rate)
	subs.Get("/status", h.subscriptions.HandleStatus)
	subs.Post("/create-checkout-session", h.subscriptions.HandleCreateCheckoutSession)
	subs.Post("/create-portal-session", h.subscriptions.HandleCreatePortalSession)

	users := api.Group("/users", auth, rate)
	users.Get("/me", h.users.HandleGetAccount)
}

// newLimiterStorage backs the rate limiter with the shared Redis instance so
// limits hold across replicas. Database 1 keeps limiter keys apart from the
// status cache in database 0.
func newLimiterStorage() *redis.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient := cache.GetClient(); cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

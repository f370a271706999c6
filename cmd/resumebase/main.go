package main

import (
	"fmt"
	"log"
	"os"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/resumebase/resumebase/app/controllers"
	"github.com/resumebase/resumebase/app/repository"
	"github.com/resumebase/resumebase/internal/pkg/cache"
	"github.com/resumebase/resumebase/internal/pkg/config"
	"github.com/resumebase/resumebase/internal/pkg/database"
	"github.com/resumebase/resumebase/internal/pkg/env"
	"github.com/resumebase/resumebase/internal/pkg/reconcile"
	"github.com/resumebase/resumebase/internal/pkg/router"
	"github.com/resumebase/resumebase/internal/pkg/subscription"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	database.SetupDatabase()
	cache.SetupCache()

	clerk.SetKey(cfg.ClerkSecretKey)
	stripeClient := client.New(cfg.StripeSecretKey, nil)

	repos := repository.NewFactory(database.GetDB()).GetRepositories()
	subs := subscription.NewService(repos.User, stripeClient, cache.Store{}, subscription.Config{
		PriceIDPro:  cfg.StripePriceIDPro,
		FrontendURL: cfg.FrontendURL,
	})
	reconciler := reconcile.NewReconciler(repos.User, reconcile.Config{
		MonitoredPriceID: cfg.StripePriceIDPro,
	})
	reconciler.Invalidate = subs.InvalidateStatus

	// Find the project root for the bundled API docs
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/resumebase to project root
		"../../../", // Fallback
	}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}
	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // webhook payloads stay small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	apiRouter := router.NewApiRouter(
		controllers.NewWebhookController(repos.WebhookEvent, reconciler, subs, cfg),
		controllers.NewSubscriptionController(subs),
		controllers.NewUserController(repos.User),
	)
	router.InstallRouter(app, apiRouter)

	return app
}

package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resumebase/resumebase/app/models"
	"github.com/resumebase/resumebase/app/repository"
	"github.com/resumebase/resumebase/internal/pkg/config"
	"github.com/resumebase/resumebase/internal/pkg/reconcile"
	"github.com/resumebase/resumebase/internal/pkg/subscription"
	"github.com/resumebase/resumebase/internal/pkg/webhook"
)

const webhookTimeout = 15 * time.Second

// WebhookController receives provider callbacks and drives them through
// verification, decoding, deduplication and reconciliation. A request only
// reaches the database after its signature checked out.
type WebhookController struct {
	events     repository.WebhookEventRepository
	reconciler *reconcile.Reconciler
	subs       *subscription.Service
	cfg        *config.Config
}

func NewWebhookController(events repository.WebhookEventRepository, rec *reconcile.Reconciler, subs *subscription.Service, cfg *config.Config) *WebhookController {
	return &WebhookController{events: events, reconciler: rec, subs: subs, cfg: cfg}
}

// HandleClerkWebhook processes identity lifecycle callbacks. Clerk signs with
// the svix scheme; the svix-id header doubles as the delivery id.
func (wc *WebhookController) HandleClerkWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	deliveryID := strings.TrimSpace(c.Get("svix-id"))
	timestamp := strings.TrimSpace(c.Get("svix-timestamp"))
	signature := strings.TrimSpace(c.Get("svix-signature"))

	if err := webhook.VerifyClerk(rawBody, deliveryID, timestamp, signature, wc.cfg.ClerkWebhookSecret, time.Now()); err != nil {
		log.Printf("clerk webhook: signature rejected: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := webhook.DecodeClerk(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	ev.DeliveryID = deliveryID

	return wc.process(c, ev, rawBody)
}

// HandleStripeWebhook processes billing lifecycle callbacks. The Stripe event
// id inside the signed payload is the delivery id.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	if err := webhook.VerifyStripe(rawBody, signature, wc.cfg.StripeWebhookSecret, time.Now()); err != nil {
		log.Printf("stripe webhook: signature rejected: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := webhook.DecodeStripe(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	return wc.process(c, ev, rawBody)
}

// process runs the shared tail of both webhook pipelines: dedup the delivery,
// enrich where the payload is incomplete, reconcile, record the outcome.
func (wc *WebhookController) process(c *fiber.Ctx, ev *webhook.Event, rawBody []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	if ev.Kind == webhook.KindIgnored {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	created, stored, err := wc.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:       string(ev.Provider),
		DeliveryID:     ev.DeliveryID,
		EventType:      string(ev.Kind),
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Only deliveries that reconciled cleanly count as duplicates. A stored
	// row with an error (or one that never finished) means the provider is
	// retrying a failed apply, and the retry is the recovery path; the
	// policies are idempotent, so re-running them is safe.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if ev.Kind == webhook.KindCheckoutCompleted {
		wc.enrichCheckout(ctx, ev)
	}

	applyErr := wc.reconciler.Apply(ctx, ev)
	wc.markProcessed(stored.ID, applyErr)
	if applyErr != nil {
		if errors.Is(applyErr, webhook.ErrUnrecognizedEvent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		log.Printf("%s webhook %s: reconcile failed: %v", ev.Provider, ev.DeliveryID, applyErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconcile_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// enrichCheckout fills in period boundaries the checkout payload does not
// carry. Best effort: reconciliation proceeds without dates if the lookup
// fails, and the next subscription.updated delivery corrects them.
func (wc *WebhookController) enrichCheckout(ctx context.Context, ev *webhook.Event) {
	if ev.Subscription == nil || ev.Subscription.SubscriptionID == "" {
		return
	}
	start, end, priceID, err := wc.subs.SubscriptionPeriod(ctx, ev.Subscription.SubscriptionID)
	if err != nil {
		log.Printf("stripe webhook %s: period lookup failed: %v", ev.DeliveryID, err)
		return
	}
	ev.Subscription.PeriodStart = start
	ev.Subscription.PeriodEnd = end
	if ev.Subscription.PriceID == "" {
		ev.Subscription.PriceID = priceID
	}
}

func (wc *WebhookController) markProcessed(eventID uint, applyErr error) {
	msg := ""
	if applyErr != nil {
		msg = applyErr.Error()
	}
	if err := wc.events.MarkProcessed(eventID, msg); err != nil {
		log.Printf("failed to mark webhook event %d processed: %v", eventID, err)
	}
}

package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumebase/resumebase/app/models"
	"github.com/resumebase/resumebase/app/repository"
	"github.com/resumebase/resumebase/internal/pkg/config"
	"github.com/resumebase/resumebase/internal/pkg/reconcile"
	"github.com/resumebase/resumebase/internal/pkg/subscription"
)

type memUserRepo struct {
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (m *memUserRepo) GetByClerkUserID(id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) GetByStripeCustomerID(customerID string) (*models.User, error) {
	for _, u := range m.users {
		if customerID != "" && u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserRepo) Upsert(user *models.User) error {
	cp := *user
	m.users[user.ClerkUserID] = &cp
	return nil
}

func (m *memUserRepo) Update(user *models.User) error {
	cp := *user
	cp.RowVersion++
	m.users[user.ClerkUserID] = &cp
	return nil
}

func (m *memUserRepo) DeleteByClerkUserID(id string) error {
	delete(m.users, id)
	return nil
}

type memEventRepo struct {
	events map[string]*models.WebhookEvent
	nextID uint
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: map[string]*models.WebhookEvent{}}
}

func (m *memEventRepo) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.DeliveryID
	if stored, ok := m.events[key]; ok {
		return false, stored, nil
	}
	m.nextID++
	cp := *event
	cp.ID = m.nextID
	m.events[key] = &cp
	return true, &cp, nil
}

func (m *memEventRepo) MarkProcessed(id uint, processingError string) error {
	for _, ev := range m.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
		}
	}
	return nil
}

const testClerkSecretKey = "clerk-test-secret"

func newWebhookTestApp(users *memUserRepo, events *memEventRepo) *fiber.App {
	cfg := &config.Config{
		ClerkWebhookSecret:  "whsec_" + base64.StdEncoding.EncodeToString([]byte(testClerkSecretKey)),
		StripeWebhookSecret: "whsec_stripe_test",
		StripePriceIDPro:    "price_pro",
		FrontendURL:         "http://localhost:3000",
	}
	rec := reconcile.NewReconciler(users, reconcile.Config{MonitoredPriceID: cfg.StripePriceIDPro})
	subs := subscription.NewService(users, nil, nil, subscription.Config{
		PriceIDPro:  cfg.StripePriceIDPro,
		FrontendURL: cfg.FrontendURL,
	})
	wc := NewWebhookController(events, rec, subs, cfg)

	app := fiber.New()
	app.Post("/api/webhooks/clerk", wc.HandleClerkWebhook)
	app.Post("/api/webhooks/stripe", wc.HandleStripeWebhook)
	return app
}

func signClerk(t *testing.T, id, ts string, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testClerkSecretKey))
	mac.Write([]byte(id + "." + ts + "." + string(payload)))
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postClerk(t *testing.T, app *fiber.App, deliveryID string, payload []byte, signed bool) (int, map[string]any) {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest("POST", "/api/webhooks/clerk", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", deliveryID)
	req.Header.Set("svix-timestamp", ts)
	if signed {
		req.Header.Set("svix-signature", signClerk(t, deliveryID, ts, payload))
	} else {
		req.Header.Set("svix-signature", "v1,aW52YWxpZA==")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestHandleClerkWebhook_CreatesUser(t *testing.T) {
	users := newMemUserRepo()
	events := newMemEventRepo()
	app := newWebhookTestApp(users, events)

	payload := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_1",
			"email_addresses": [{"id": "idn_1", "email_address": "ada@example.com"}],
			"primary_email_address_id": "idn_1",
			"updated_at": 1700000000000
		}
	}`)

	status, body := postClerk(t, app, "msg_1", payload, true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["ok"])

	u := users.users["user_1"]
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, models.TIER_FREE, u.SubscriptionTier)

	stored := events.events["clerk/msg_1"]
	require.NotNil(t, stored)
	assert.True(t, stored.SignatureValid)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Empty(t, stored.ProcessingError)
}

func TestHandleClerkWebhook_InvalidSignature(t *testing.T) {
	users := newMemUserRepo()
	events := newMemEventRepo()
	app := newWebhookTestApp(users, events)

	payload := []byte(`{"type":"user.created","data":{"id":"user_1","email_addresses":[{"id":"idn_1","email_address":"a@b.c"}],"updated_at":1}}`)
	status, body := postClerk(t, app, "msg_1", payload, false)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid_signature", body["error"])

	// A rejected request must leave no trace.
	assert.Empty(t, users.users)
	assert.Empty(t, events.events)
}

func TestHandleClerkWebhook_DuplicateDelivery(t *testing.T) {
	users := newMemUserRepo()
	events := newMemEventRepo()
	app := newWebhookTestApp(users, events)

	payload := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_1",
			"email_addresses": [{"id": "idn_1", "email_address": "ada@example.com"}],
			"primary_email_address_id": "idn_1",
			"updated_at": 1700000000000
		}
	}`)

	status, _ := postClerk(t, app, "msg_1", payload, true)
	require.Equal(t, fiber.StatusOK, status)

	status, body := postClerk(t, app, "msg_1", payload, true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	assert.Len(t, events.events, 1)
}

func TestHandleClerkWebhook_IgnoredType(t *testing.T) {
	users := newMemUserRepo()
	events := newMemEventRepo()
	app := newWebhookTestApp(users, events)

	payload := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	status, body := postClerk(t, app, "msg_2", payload, true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["ignored"])
	assert.Empty(t, events.events)
}

func postStripe(t *testing.T, app *fiber.App, payload []byte) (int, map[string]any) {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte("whsec_stripe_test"))
	mac.Write([]byte(ts + "." + string(payload)))
	header := "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", header)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestHandleStripeWebhook_RetryAfterFailedApply(t *testing.T) {
	users := newMemUserRepo()
	events := newMemEventRepo()
	app := newWebhookTestApp(users, events)

	payload := []byte(`{
		"id": "evt_retry",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_1",
			"metadata": {"clerk_user_id": "user_1"}
		}}
	}`)

	// First delivery lands before the account exists and must fail loudly.
	status, body := postStripe(t, app, payload)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "reconcile_failed", body["error"])

	stored := events.events["stripe/evt_retry"]
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ProcessingError)

	// The account shows up, the provider retries the same delivery, and the
	// retry must re-run the policy instead of short-circuiting as duplicate.
	users.users["user_1"] = &models.User{
		ClerkUserID:        "user_1",
		Email:              "ada@example.com",
		SubscriptionTier:   models.TIER_FREE,
		SubscriptionStatus: models.SUB_STATUS_ACTIVE,
	}
	status, body = postStripe(t, app, payload)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["duplicate"])

	u := users.users["user_1"]
	require.NotNil(t, u)
	assert.Equal(t, models.TIER_PRO, u.SubscriptionTier)
	assert.Equal(t, "cus_1", u.StripeCustomerID)
	assert.Empty(t, events.events["stripe/evt_retry"].ProcessingError)

	// A third delivery after the successful apply is a plain duplicate.
	status, body = postStripe(t, app, payload)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
}

func TestHandleStripeWebhook_SubscriptionDeleted(t *testing.T) {
	users := newMemUserRepo()
	events := newMemEventRepo()
	app := newWebhookTestApp(users, events)
	users.users["user_1"] = &models.User{
		ClerkUserID:        "user_1",
		Email:              "ada@example.com",
		StripeCustomerID:   "cus_1",
		SubscriptionTier:   models.TIER_PRO,
		SubscriptionStatus: models.SUB_STATUS_ACTIVE,
	}

	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.deleted",
		"created": 1700000000,
		"data": {"object": {"id": "sub_1", "customer": "cus_1", "status": "canceled"}}
	}`)
	status, _ := postStripe(t, app, payload)
	assert.Equal(t, fiber.StatusOK, status)

	u := users.users["user_1"]
	require.NotNil(t, u)
	assert.Equal(t, models.TIER_FREE, u.SubscriptionTier)
	assert.Equal(t, models.SUB_STATUS_CANCELED, u.SubscriptionStatus)
}

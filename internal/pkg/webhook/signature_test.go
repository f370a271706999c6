package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func svixSign(t *testing.T, secret, id, ts string, payload []byte) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(secret[len("whsec_"):])
	if err != nil {
		t.Fatalf("bad test secret: %v", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + ts + "." + string(payload)))
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyClerk(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("clerk-test-secret"))
	payload := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	now := time.Unix(1700000000, 0)
	id := "msg_123"
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := svixSign(t, secret, id, ts, payload)

	if err := VerifyClerk(payload, id, ts, sig, secret, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	// A single flipped byte in the body must invalidate the signature.
	tampered := append([]byte(nil), payload...)
	tampered[0] ^= 0x01
	if err := VerifyClerk(tampered, id, ts, sig, secret, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected tampered body to fail, got %v", err)
	}

	// A correctly signed but stale delivery is a replay.
	late := now.Add(Tolerance + time.Minute)
	if err := VerifyClerk(payload, id, ts, sig, secret, late); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected stale timestamp to fail, got %v", err)
	}

	// Any one matching entry in a multi-signature header is enough.
	multi := "v1,Zm9vYmFy " + sig + " v1,YmF6cXV4"
	if err := VerifyClerk(payload, id, ts, multi, secret, now); err != nil {
		t.Fatalf("expected multi-signature header to validate, got %v", err)
	}

	if err := VerifyClerk(payload, id, "", sig, secret, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected missing timestamp to fail, got %v", err)
	}
	if err := VerifyClerk(payload, id, ts, sig, "", now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected missing secret to fail, got %v", err)
	}
}

func TestVerifyClerk_WrongSecret(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("clerk-test-secret"))
	other := "whsec_" + base64.StdEncoding.EncodeToString([]byte("a-different-secret"))
	payload := []byte(`{"type":"user.deleted"}`)
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := svixSign(t, other, "msg_1", ts, payload)

	if err := VerifyClerk(payload, "msg_1", ts, sig, secret, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected wrong secret to fail, got %v", err)
	}
}

func stripeSign(secret, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripe(t *testing.T) {
	secret := "whsec_stripe_test"
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	header := stripeSign(secret, ts, payload)

	if err := VerifyStripe(payload, header, secret, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-1] ^= 0x01
	if err := VerifyStripe(tampered, header, secret, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected tampered body to fail, got %v", err)
	}

	late := now.Add(Tolerance + time.Second)
	if err := VerifyStripe(payload, header, secret, late); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected stale timestamp to fail, got %v", err)
	}

	if err := VerifyStripe(payload, "t="+ts, secret, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected header without v1 entry to fail, got %v", err)
	}
	if err := VerifyStripe(payload, "v1=deadbeef", secret, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected header without timestamp to fail, got %v", err)
	}
	if err := VerifyStripe(payload, header, "another-secret", now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected wrong secret to fail, got %v", err)
	}
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrSignatureInvalid covers a wrong secret, a tampered body and a stale
// timestamp alike; callers must not distinguish them towards the sender.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Tolerance is the maximum accepted clock skew between the signed timestamp
// and the server clock. Older deliveries are rejected as replays even when
// the signature itself matches.
const Tolerance = 5 * time.Minute

// VerifyClerk validates the Svix-style signature Clerk attaches to webhook
// deliveries. The signed content is "{delivery-id}.{timestamp}.{body}", the
// secret is base64 behind a "whsec_" prefix, and the signature header may
// carry several space-separated "v1,<base64>" entries of which any one match
// is sufficient.
func VerifyClerk(payload []byte, deliveryID, timestamp, signatureHeader, secret string, now time.Time) error {
	id := strings.TrimSpace(deliveryID)
	ts := strings.TrimSpace(timestamp)
	sigs := strings.TrimSpace(signatureHeader)
	if id == "" || ts == "" || sigs == "" || strings.TrimSpace(secret) == "" {
		return ErrSignatureInvalid
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if outsideTolerance(now, time.Unix(unix, 0)) {
		return ErrSignatureInvalid
	}

	key := secretBytes(secret)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(sigs) {
		// Entries look like "v1,<base64sig>"; unversioned entries are the
		// bare signature.
		if i := strings.IndexByte(candidate, ','); i >= 0 {
			if candidate[:i] != "v1" {
				continue
			}
			candidate = candidate[i+1:]
		}
		sig, err := base64.StdEncoding.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// VerifyStripe validates the "t=<unix>,v1=<hex>,..." scheme of the
// Stripe-Signature header. The signed content is "{timestamp}.{body}".
func VerifyStripe(payload []byte, signatureHeader, secret string, now time.Time) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return ErrSignatureInvalid
	}

	var ts string
	var candidates []string
	for _, pair := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == "" || len(candidates) == 0 {
		return ErrSignatureInvalid
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if outsideTolerance(now, time.Unix(unix, 0)) {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		sig, err := hex.DecodeString(strings.TrimSpace(candidate))
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

func secretBytes(secret string) []byte {
	raw := strings.TrimPrefix(strings.TrimSpace(secret), "whsec_")
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	return []byte(raw)
}

func outsideTolerance(now, signed time.Time) bool {
	diff := now.Sub(signed)
	if diff < 0 {
		diff = -diff
	}
	return diff > Tolerance
}

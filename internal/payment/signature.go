package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds how old a signed payload may be. Stripe
// retries failed deliveries, so replays older than this are rejected.
const signatureTolerance = 5 * time.Minute

// verifySignature checks a Stripe-Signature header ("t=<unix>,v1=<hmac>")
// against the raw payload. The signed message is "<t>.<payload>" and the
// MAC is HMAC-SHA256 keyed with the endpoint secret.
func verifySignature(payload []byte, sigHeader, secret string, now time.Time) error {
	var timestamp int64
	var candidates []string

	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrSignatureExpired
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a valid signature header for the given payload.
// Used by tests and local webhook replays.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

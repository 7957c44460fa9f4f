package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	t.Run("Valid", func(t *testing.T) {
		header := SignPayload(payload, secret, now)
		assert.NoError(t, verifySignature(payload, header, secret, now))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		header := SignPayload(payload, "whsec_other", now)
		err := verifySignature(payload, header, secret, now)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		header := SignPayload(payload, secret, now)
		err := verifySignature([]byte(`{"id":"evt_2"}`), header, secret, now)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("TooOld", func(t *testing.T) {
		header := SignPayload(payload, secret, now.Add(-6*time.Minute))
		err := verifySignature(payload, header, secret, now)
		assert.ErrorIs(t, err, ErrSignatureExpired)
	})

	t.Run("FromTheFuture", func(t *testing.T) {
		header := SignPayload(payload, secret, now.Add(6*time.Minute))
		err := verifySignature(payload, header, secret, now)
		assert.ErrorIs(t, err, ErrSignatureExpired)
	})

	t.Run("WithinTolerance", func(t *testing.T) {
		header := SignPayload(payload, secret, now.Add(-4*time.Minute))
		assert.NoError(t, verifySignature(payload, header, secret, now))
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		assert.ErrorIs(t, verifySignature(payload, "", secret, now), ErrInvalidSignature)
		assert.ErrorIs(t, verifySignature(payload, "t=abc,v1=deadbeef", secret, now), ErrInvalidSignature)
		assert.ErrorIs(t, verifySignature(payload, "v1=deadbeef", secret, now), ErrInvalidSignature)
	})

	t.Run("MultipleCandidates", func(t *testing.T) {
		// Stripe may include several v1 entries during secret rotation.
		valid := SignPayload(payload, secret, now)
		header := valid + ",v1=0000000000000000000000000000000000000000000000000000000000000000"
		assert.NoError(t, verifySignature(payload, header, secret, now))
	})
}

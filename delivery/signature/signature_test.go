package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	t.Run("matches independently computed HMAC", func(t *testing.T) {
		secret := "s3cr3t"
		payload := []byte(`{"a":1}`)

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

		assert.Equal(t, expected, Sign(payload, secret))
	})

	t.Run("same inputs produce same signature", func(t *testing.T) {
		payload := []byte(`{"a":1}`)
		assert.Equal(t, Sign(payload, "s3cr3t"), Sign(payload, "s3cr3t"))
	})

	t.Run("different secrets produce different signatures", func(t *testing.T) {
		payload := []byte(`{"a":1}`)
		assert.NotEqual(t, Sign(payload, "s3cr3t"), Sign(payload, "other"))
	})
}

func TestIsValid(t *testing.T) {
	secret := "s3cr3t"
	payload := []byte(`{"a":1}`)

	t.Run("accepts a correctly computed signature", func(t *testing.T) {
		assert.True(t, IsValid(payload, secret, Sign(payload, secret)))
	})

	t.Run("rejects after flipping one payload byte", func(t *testing.T) {
		sig := Sign(payload, secret)

		flipped := make([]byte, len(payload))
		copy(flipped, payload)
		flipped[2] ^= 0x01

		assert.False(t, IsValid(flipped, secret, sig))
	})

	t.Run("rejects signature computed with a different secret", func(t *testing.T) {
		assert.False(t, IsValid(payload, secret, Sign(payload, "other")))
	})

	t.Run("rejects wrong algorithm prefix", func(t *testing.T) {
		sig := Sign(payload, secret)
		require.True(t, len(sig) > len(Prefix))
		assert.False(t, IsValid(payload, secret, "sha1="+sig[len(Prefix):]))
	})

	t.Run("rejects truncated signature", func(t *testing.T) {
		sig := Sign(payload, secret)
		assert.False(t, IsValid(payload, secret, sig[:len(sig)-2]))
	})

	t.Run("rejects empty signature", func(t *testing.T) {
		assert.False(t, IsValid(payload, secret, ""))
	})

	t.Run("accepts non-ASCII payload byte-for-byte", func(t *testing.T) {
		utf8Payload := []byte(`{"name":"café ☕","emoji":"🚀"}`)
		sig := Sign(utf8Payload, secret)
		assert.True(t, IsValid(utf8Payload, secret, sig))
		assert.False(t, IsValid([]byte(`{"name":"cafe ☕","emoji":"🚀"}`), secret, sig))
	})
}

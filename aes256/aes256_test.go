package aes256

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, KeySize)
	return key
}

// --- GenerateKey tests ---

func TestGenerateKeyUnique(t *testing.T) {
	k1 := mustKey(t)
	k2 := mustKey(t)
	assert.NotEqual(t, k1, k2, "two generated keys should differ")
}

// --- Encrypt / Decrypt tests ---

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short text", []byte("hello genome")},
		{"binary", []byte{0x00, 0x01, 0xff, 0xfe}},
		{"1 MiB", bytes.Repeat([]byte("ACGT"), 256*1024)},
	}

	key := mustKey(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encrypt(tt.plaintext, key)
			require.NoError(t, err)
			assert.Len(t, payload, len(tt.plaintext)+NonceLen+GCMTagLen)

			got, err := Decrypt(payload, key)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestEncryptNonceUniqueness(t *testing.T) {
	key := mustKey(t)
	plaintext := []byte("same plaintext, same key")

	p1, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	p2, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2, "payloads must differ due to random nonce")
	assert.NotEqual(t, p1[:NonceLen], p2[:NonceLen], "nonces must differ")
}

func TestEncryptInvalidKey(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDecryptWrongKey(t *testing.T) {
	k1 := mustKey(t)
	k2 := mustKey(t)

	payload, err := Encrypt([]byte("patient data"), k1)
	require.NoError(t, err)

	got, err := Decrypt(payload, k2)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Nil(t, got, "no plaintext on authentication failure")
}

func TestDecryptTamperedPayload(t *testing.T) {
	key := mustKey(t)
	payload, err := Encrypt([]byte("integrity matters"), key)
	require.NoError(t, err)

	// Flip one byte in every region of the payload: nonce, ciphertext, tag.
	for _, idx := range []int{0, NonceLen, len(payload) - 1} {
		tampered := append([]byte{}, payload...)
		tampered[idx] ^= 0x01

		got, err := Decrypt(tampered, key)
		assert.ErrorIs(t, err, ErrAuthenticationFailed, "byte %d", idx)
		assert.Nil(t, got)
	}
}

func TestDecryptTooShort(t *testing.T) {
	key := mustKey(t)

	for _, n := range []int{0, 1, NonceLen, MinPayloadLen - 1} {
		_, err := Decrypt(make([]byte, n), key)
		assert.ErrorIs(t, err, ErrInvalidPayload, "length %d", n)
	}
}

func TestDecryptEmptyPlaintextPayload(t *testing.T) {
	key := mustKey(t)
	payload, err := Encrypt(nil, key)
	require.NoError(t, err)
	require.Len(t, payload, MinPayloadLen)

	got, err := Decrypt(payload, key)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// Package aes256 implements the symmetric encryption layer for genomic
// payloads: AES-256-GCM with a random per-call nonce.
//
// Wire format: nonce(12B) || ciphertext || tag(16B). This exact byte
// sequence is what gets fingerprinted and handed to the blob store.
package aes256

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// KeySize is the length of an AES-256 key in bytes.
	KeySize = 32

	// NonceLen is the length of the AES-GCM nonce in bytes.
	NonceLen = 12

	// GCMTagLen is the length of the GCM authentication tag in bytes.
	GCMTagLen = 16

	// MinPayloadLen is the minimum valid payload length (nonce + tag).
	MinPayloadLen = NonceLen + GCMTagLen
)

// GenerateKey returns a fresh cryptographically random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("aes256: key generation failed: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under key with AES-256-GCM.
//
// A fresh random 96-bit nonce is drawn from crypto/rand on every call.
// Nonce reuse under the same key breaks GCM, so the nonce is never
// caller-supplied and never derived from a counter.
//
// Returns nonce(12B) || ciphertext || tag(16B).
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aes256: random nonce generation failed: %w", err)
	}

	// Seal appends ciphertext||tag to the nonce prefix.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt.
//
// The GCM tag is verified as part of decryption; if it does not verify
// (tampered payload, corruption, or wrong key) Decrypt returns
// ErrAuthenticationFailed and no plaintext.
func Decrypt(payload, key []byte) ([]byte, error) {
	if len(payload) < MinPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidPayload, len(payload), MinPayloadLen)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := payload[:gcm.NonceSize()]
	sealed := payload[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	// Normalize nil to empty slice for consistency.
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

// newGCM constructs an AES-256-GCM AEAD for the given key.
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes256: cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aes256: GCM creation failed: %w", err)
	}

	return gcm, nil
}

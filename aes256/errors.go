package aes256

import "errors"

var (
	// ErrInvalidKey indicates the key is not exactly 32 bytes.
	ErrInvalidKey = errors.New("aes256: key must be 32 bytes")

	// ErrInvalidPayload indicates the payload is too short or malformed.
	// Minimum length: 12 (nonce) + 16 (GCM tag) = 28 bytes.
	ErrInvalidPayload = errors.New("aes256: invalid payload")

	// ErrAuthenticationFailed indicates the GCM authentication tag did not
	// verify during decryption: the payload was tampered with, corrupted,
	// or decrypted with the wrong key. No plaintext is returned.
	ErrAuthenticationFailed = errors.New("aes256: authentication failed")
)

package identity

import "errors"

var (
	// ErrInvalidAddress indicates the address is not a hex-encoded
	// compressed public key.
	ErrInvalidAddress = errors.New("identity: invalid address")

	// ErrInvalidPrivateKey indicates private key material could not be parsed.
	ErrInvalidPrivateKey = errors.New("identity: invalid private key")

	// ErrInvalidSignature indicates a signature failed to parse or verify.
	ErrInvalidSignature = errors.New("identity: invalid signature")
)

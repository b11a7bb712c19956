package fingerprint

import "errors"

var (
	// ErrInvalidDigest indicates a digest string is not 64 hex characters.
	ErrInvalidDigest = errors.New("fingerprint: invalid digest")
)

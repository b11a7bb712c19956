package ledger

import "errors"

var (
	// ErrAlreadyRegistered is returned when an owner registers twice.
	ErrAlreadyRegistered = errors.New("ledger: owner already registered")

	// ErrNotRegistered is returned when a mutation requires a registered
	// owner and the caller (or target) is not one.
	ErrNotRegistered = errors.New("ledger: owner not registered")

	// ErrNoData is returned when access is requested for an owner who has
	// never published a record pointer.
	ErrNoData = errors.New("ledger: owner has published no data")

	// ErrPointerNotFound is returned when no record pointer exists for the
	// owner.
	ErrPointerNotFound = errors.New("ledger: record pointer not found")

	// ErrNotAuthorized is returned when a caller reads a pointer without
	// being the owner or holding an approved grant.
	ErrNotAuthorized = errors.New("ledger: caller not authorized")

	// ErrInvalidTransition is returned when a grant mutation is not legal
	// from the current status.
	ErrInvalidTransition = errors.New("ledger: invalid grant state transition")

	// ErrNilSigner is returned when a mutating call is made without a signer.
	ErrNilSigner = errors.New("ledger: nil signer")

	// ErrInvalidAddress is returned when a principal identifier does not
	// parse as a public key.
	ErrInvalidAddress = errors.New("ledger: invalid address")

	// ErrUnavailable is returned when the remote ledger cannot be reached.
	ErrUnavailable = errors.New("ledger: service unavailable")

	// ErrInvalidResponse is returned when the remote ledger's response
	// cannot be decoded.
	ErrInvalidResponse = errors.New("ledger: invalid response")
)

package ledger

import (
	"context"
	"strings"

	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
)

// Service is the client-facing ledger surface. Mutations take the
// caller's Signer: the implementation attributes the call to the
// signer's address and rejects it if the signature does not verify.
// Reads take plain addresses.
type Service interface {
	// RegisterOwner registers the caller as a data owner. A second
	// registration for the same address fails with ErrAlreadyRegistered.
	RegisterOwner(ctx context.Context, caller identity.Signer) error

	// PublishPointer records the caller's current record pointer. The
	// caller must be a registered owner.
	PublishPointer(ctx context.Context, caller identity.Signer, contentID string, fp fingerprint.Digest) error

	// RequestAccess moves the (owner, caller) grant to StatusRequested.
	// The owner must have published at least once; an approved grant
	// cannot be re-requested.
	RequestAccess(ctx context.Context, caller identity.Signer, owner identity.Address) error

	// ApproveAccess moves the (caller, requester) grant from
	// StatusRequested to StatusApproved.
	ApproveAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error

	// RevokeAccess moves the (caller, requester) grant from
	// StatusApproved to StatusRevoked.
	RevokeAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error

	// IsOwner reports whether addr is a registered owner.
	IsOwner(ctx context.Context, addr identity.Address) (bool, error)

	// CheckAccess reports whether requester holds an approved grant
	// from owner.
	CheckAccess(ctx context.Context, owner, requester identity.Address) (bool, error)

	// GrantState returns the current status of the (owner, requester)
	// grant. StatusNone means no grant has ever been requested.
	GrantState(ctx context.Context, owner, requester identity.Address) (GrantStatus, error)

	// ReadPointer returns owner's current record pointer. Callable by
	// the owner and by requesters with an approved grant; every other
	// caller gets ErrNotAuthorized.
	ReadPointer(ctx context.Context, owner, caller identity.Address) (*RecordPointer, error)

	// PointerHistory returns owner's pointers, oldest first. With
	// single-version history this is at most the live pointer.
	PointerHistory(ctx context.Context, owner identity.Address) ([]RecordPointer, error)

	// Events returns the full audit log in ledger order.
	Events(ctx context.Context) ([]Event, error)
}

// mutationDigest builds the 32-byte digest a caller signs for one
// mutation. The message binds the operation name, the caller address
// and every operation field, newline-separated, under a versioned
// domain prefix.
func mutationDigest(op string, caller identity.Address, fields ...string) []byte {
	parts := append([]string{"prism-ledger/v1", op, string(caller)}, fields...)
	return identity.Digest([]byte(strings.Join(parts, "\n")))
}

// authenticate checks that caller's key actually signs the mutation.
// Returns the attributed address.
func authenticate(caller identity.Signer, op string, fields ...string) (identity.Address, error) {
	if caller == nil {
		return "", ErrNilSigner
	}
	addr := caller.Address()
	if !addr.Valid() {
		return "", ErrInvalidAddress
	}
	digest := mutationDigest(op, addr, fields...)
	sig, err := caller.Sign(digest)
	if err != nil {
		return "", err
	}
	if err := identity.VerifySignature(addr, digest, sig); err != nil {
		return "", err
	}
	return addr, nil
}

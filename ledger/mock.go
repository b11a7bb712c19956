package ledger

import (
	"context"

	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
)

// MockService is a test double for Service. All function fields must
// be set before the corresponding method is called.
type MockService struct {
	RegisterOwnerFn  func(ctx context.Context, caller identity.Signer) error
	PublishPointerFn func(ctx context.Context, caller identity.Signer, contentID string, fp fingerprint.Digest) error
	RequestAccessFn  func(ctx context.Context, caller identity.Signer, owner identity.Address) error
	ApproveAccessFn  func(ctx context.Context, caller identity.Signer, requester identity.Address) error
	RevokeAccessFn   func(ctx context.Context, caller identity.Signer, requester identity.Address) error
	IsOwnerFn        func(ctx context.Context, addr identity.Address) (bool, error)
	CheckAccessFn    func(ctx context.Context, owner, requester identity.Address) (bool, error)
	GrantStateFn     func(ctx context.Context, owner, requester identity.Address) (GrantStatus, error)
	ReadPointerFn    func(ctx context.Context, owner, caller identity.Address) (*RecordPointer, error)
	PointerHistoryFn func(ctx context.Context, owner identity.Address) ([]RecordPointer, error)
	EventsFn         func(ctx context.Context) ([]Event, error)
}

// Compile-time interface check.
var _ Service = (*MockService)(nil)

func (m *MockService) RegisterOwner(ctx context.Context, caller identity.Signer) error {
	return m.RegisterOwnerFn(ctx, caller)
}
func (m *MockService) PublishPointer(ctx context.Context, caller identity.Signer, contentID string, fp fingerprint.Digest) error {
	return m.PublishPointerFn(ctx, caller, contentID, fp)
}
func (m *MockService) RequestAccess(ctx context.Context, caller identity.Signer, owner identity.Address) error {
	return m.RequestAccessFn(ctx, caller, owner)
}
func (m *MockService) ApproveAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return m.ApproveAccessFn(ctx, caller, requester)
}
func (m *MockService) RevokeAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return m.RevokeAccessFn(ctx, caller, requester)
}
func (m *MockService) IsOwner(ctx context.Context, addr identity.Address) (bool, error) {
	return m.IsOwnerFn(ctx, addr)
}
func (m *MockService) CheckAccess(ctx context.Context, owner, requester identity.Address) (bool, error) {
	return m.CheckAccessFn(ctx, owner, requester)
}
func (m *MockService) GrantState(ctx context.Context, owner, requester identity.Address) (GrantStatus, error) {
	return m.GrantStateFn(ctx, owner, requester)
}
func (m *MockService) ReadPointer(ctx context.Context, owner, caller identity.Address) (*RecordPointer, error) {
	return m.ReadPointerFn(ctx, owner, caller)
}
func (m *MockService) PointerHistory(ctx context.Context, owner identity.Address) ([]RecordPointer, error) {
	return m.PointerHistoryFn(ctx, owner)
}
func (m *MockService) Events(ctx context.Context) ([]Event, error) {
	return m.EventsFn(ctx)
}

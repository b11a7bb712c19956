package custody

import (
	"context"

	"github.com/prismgenomics/libprism-go/identity"
	"github.com/prismgenomics/libprism-go/ledger"
)

// Grant management passthroughs, so callers holding an Engine can run
// the whole custody workflow without also wiring the ledger.

func (e *Engine) RegisterOwner(ctx context.Context, caller identity.Signer) error {
	return e.ledger.RegisterOwner(ctx, caller)
}

func (e *Engine) RequestAccess(ctx context.Context, caller identity.Signer, owner identity.Address) error {
	return e.ledger.RequestAccess(ctx, caller, owner)
}

func (e *Engine) ApproveAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return e.ledger.ApproveAccess(ctx, caller, requester)
}

func (e *Engine) RevokeAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return e.ledger.RevokeAccess(ctx, caller, requester)
}

func (e *Engine) CheckAccess(ctx context.Context, owner, requester identity.Address) (bool, error) {
	return e.ledger.CheckAccess(ctx, owner, requester)
}

// AuditTrail returns the ledger's audit events, optionally filtered to
// one owner. An empty owner returns the full log.
func (e *Engine) AuditTrail(ctx context.Context, owner identity.Address) ([]ledger.Event, error) {
	events, err := e.ledger.Events(ctx)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return events, nil
	}
	filtered := make([]ledger.Event, 0, len(events))
	for _, ev := range events {
		if ev.Owner == owner {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

// Package ledger implements the append-only permission ledger: owner
// registration, record pointers, and the per-(owner, requester) grant
// state machine. Every mutation is attributed to a caller by an ECDSA
// signature and emits an immutable audit event; the full grant and
// pointer state can be re-derived by replaying the event log.
package ledger

import (
	"time"

	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
)

// GrantStatus is the state of a single (owner, requester) access grant.
type GrantStatus int

const (
	StatusNone GrantStatus = iota
	StatusRequested
	StatusApproved
	StatusRevoked
)

// String returns the canonical name of a status.
func (s GrantStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusRequested:
		return "requested"
	case StatusApproved:
		return "approved"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// EventType identifies an audit event. The set is closed: replay code
// switches exhaustively over these values.
type EventType int

const (
	EventOwnerRegistered EventType = iota + 1
	EventDataPublished
	EventAccessRequested
	EventAccessApproved
	EventAccessRevoked
)

// String returns the canonical name of an event type.
func (t EventType) String() string {
	switch t {
	case EventOwnerRegistered:
		return "owner_registered"
	case EventDataPublished:
		return "data_published"
	case EventAccessRequested:
		return "access_requested"
	case EventAccessApproved:
		return "access_approved"
	case EventAccessRevoked:
		return "access_revoked"
	default:
		return "unknown"
	}
}

// Event is one immutable entry in the audit log. Owner is always set.
// Requester is set for grant events; ContentID and Fingerprint are set
// for EventDataPublished so the pointer state is replayable from events
// alone.
type Event struct {
	Seq         uint64
	Type        EventType
	Owner       identity.Address
	Requester   identity.Address
	ContentID   string
	Fingerprint string
	Timestamp   time.Time
}

// RecordPointer is the ledger's pointer to an owner's current (or, in
// history mode, a past) encrypted record in the blob store.
type RecordPointer struct {
	ContentID   string
	Fingerprint fingerprint.Digest
	UpdatedAt   time.Time
}

// Grant is the stored value of the (owner, requester) state machine.
type Grant struct {
	Status      GrantStatus
	LastUpdated time.Time
}

// GrantKey identifies one grant in replayed state.
type GrantKey struct {
	Owner     identity.Address
	Requester identity.Address
}

// State is the full ledger state as re-derived from the event log.
type State struct {
	Owners   map[identity.Address]bool
	Pointers map[identity.Address]RecordPointer
	Grants   map[GrantKey]GrantStatus
}

// Replay folds an ordered event sequence into ledger state. It is the
// reference derivation: a correct ledger's live state always matches
// the replay of its own events.
func Replay(events []Event) (*State, error) {
	st := &State{
		Owners:   make(map[identity.Address]bool),
		Pointers: make(map[identity.Address]RecordPointer),
		Grants:   make(map[GrantKey]GrantStatus),
	}
	for _, ev := range events {
		key := GrantKey{Owner: ev.Owner, Requester: ev.Requester}
		switch ev.Type {
		case EventOwnerRegistered:
			st.Owners[ev.Owner] = true
		case EventDataPublished:
			fp, err := fingerprint.Parse(ev.Fingerprint)
			if err != nil {
				return nil, err
			}
			st.Pointers[ev.Owner] = RecordPointer{
				ContentID:   ev.ContentID,
				Fingerprint: fp,
				UpdatedAt:   ev.Timestamp,
			}
		case EventAccessRequested:
			st.Grants[key] = StatusRequested
		case EventAccessApproved:
			st.Grants[key] = StatusApproved
		case EventAccessRevoked:
			st.Grants[key] = StatusRevoked
		}
	}
	return st, nil
}

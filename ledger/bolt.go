package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
)

var (
	bucketOwners     = []byte("owners")
	bucketPointers   = []byte("pointers")
	bucketPtrHistory = []byte("pointer_history")
	bucketGrants     = []byte("grants")
	bucketEvents     = []byte("events")
)

// HistoryMode controls what PublishPointer does with the previous
// pointer: overwrite it (the single live pointer model, leaving the
// old blob orphaned in the store) or keep an append-only log of every
// pointer ever published.
type HistoryMode int

const (
	SingleVersion HistoryMode = iota
	KeepHistory
)

// Options configures a BoltLedger. The zero value is usable:
// single-version pointers and a warn-level logger.
type Options struct {
	History HistoryMode
	Log     *logrus.Logger
}

// BoltLedger is a local, embedded ledger backed by bbolt. Each mutation
// runs in a single write transaction: the state change and its audit
// event commit together or not at all.
type BoltLedger struct {
	db      *bbolt.DB
	history HistoryMode
	log     *logrus.Logger
}

// Compile-time interface check.
var _ Service = (*BoltLedger)(nil)

// OpenBoltLedger opens or creates the ledger database at dbPath. The
// parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string, opts Options) (*BoltLedger, error) {
	if opts.Log == nil {
		opts.Log = logrus.New()
		opts.Log.SetLevel(logrus.WarnLevel)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketOwners, bucketPointers, bucketPtrHistory, bucketGrants, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltLedger{db: db, history: opts.History, log: opts.Log}, nil
}

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// seqKey encodes an event sequence number as an 8-byte big-endian key
// so bbolt iteration order is ledger order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// grantKey is the storage key of one (owner, requester) grant.
func grantKey(owner, requester identity.Address) []byte {
	return []byte(string(owner) + "|" + string(requester))
}

// historyKey orders an owner's pointer history by event sequence.
// Addresses are fixed-length, so the owner part prefix-scans cleanly.
func historyKey(owner identity.Address, seq uint64) []byte {
	k := make([]byte, 0, identity.AddressLen+8)
	k = append(k, owner...)
	return append(k, seqKey(seq)...)
}

// appendEvent writes the next audit event inside the caller's write
// transaction and returns its sequence number.
func appendEvent(tx *bbolt.Tx, ev Event) (uint64, error) {
	b := tx.Bucket(bucketEvents)
	seq, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	ev.Seq = seq
	data, err := encodeGob(&ev)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	if err := b.Put(seqKey(seq), data); err != nil {
		return 0, fmt.Errorf("put event: %w", err)
	}
	return seq, nil
}

// --- mutations ---

// RegisterOwner registers the caller as a data owner.
func (l *BoltLedger) RegisterOwner(ctx context.Context, caller identity.Signer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, err := authenticate(caller, "registerOwner")
	if err != nil {
		return err
	}

	err = l.db.Update(func(tx *bbolt.Tx) error {
		owners := tx.Bucket(bucketOwners)
		if owners.Get([]byte(addr)) != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, addr)
		}
		if err := owners.Put([]byte(addr), []byte{1}); err != nil {
			return fmt.Errorf("put owner: %w", err)
		}
		_, err := appendEvent(tx, Event{
			Type:      EventOwnerRegistered,
			Owner:     addr,
			Timestamp: time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return err
	}

	l.log.WithField("owner", addr).Info("owner registered")
	return nil
}

// PublishPointer records the caller's current record pointer.
func (l *BoltLedger) PublishPointer(ctx context.Context, caller identity.Signer, contentID string, fp fingerprint.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentID == "" {
		return fmt.Errorf("%w: empty content identifier", ErrPointerNotFound)
	}
	addr, err := authenticate(caller, "publishPointer", contentID, fp.Hex())
	if err != nil {
		return err
	}

	err = l.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketOwners).Get([]byte(addr)) == nil {
			return fmt.Errorf("%w: %s", ErrNotRegistered, addr)
		}

		seq, err := appendEvent(tx, Event{
			Type:        EventDataPublished,
			Owner:       addr,
			ContentID:   contentID,
			Fingerprint: fp.Hex(),
			Timestamp:   time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		ptr := RecordPointer{ContentID: contentID, Fingerprint: fp, UpdatedAt: time.Now().UTC()}
		data, err := encodeGob(&ptr)
		if err != nil {
			return fmt.Errorf("encode pointer: %w", err)
		}
		if err := tx.Bucket(bucketPointers).Put([]byte(addr), data); err != nil {
			return fmt.Errorf("put pointer: %w", err)
		}
		if l.history == KeepHistory {
			if err := tx.Bucket(bucketPtrHistory).Put(historyKey(addr, seq), data); err != nil {
				return fmt.Errorf("put pointer history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{"owner": addr, "cid": contentID}).Info("pointer published")
	return nil
}

// RequestAccess moves the (owner, caller) grant to StatusRequested.
func (l *BoltLedger) RequestAccess(ctx context.Context, caller identity.Signer, owner identity.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, err := authenticate(caller, "requestAccess", string(owner))
	if err != nil {
		return err
	}
	if !owner.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, owner)
	}

	err = l.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketOwners).Get([]byte(owner)) == nil {
			return fmt.Errorf("%w: %s", ErrNotRegistered, owner)
		}
		if tx.Bucket(bucketPointers).Get([]byte(owner)) == nil {
			return fmt.Errorf("%w: %s", ErrNoData, owner)
		}

		grants := tx.Bucket(bucketGrants)
		current, err := readGrant(grants, owner, addr)
		if err != nil {
			return err
		}
		if current.Status == StatusApproved {
			return fmt.Errorf("%w: grant already approved", ErrInvalidTransition)
		}

		if err := writeGrant(grants, owner, addr, StatusRequested); err != nil {
			return err
		}
		_, err = appendEvent(tx, Event{
			Type:      EventAccessRequested,
			Owner:     owner,
			Requester: addr,
			Timestamp: time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{"owner": owner, "requester": addr}).Info("access requested")
	return nil
}

// ApproveAccess moves the (caller, requester) grant to StatusApproved.
func (l *BoltLedger) ApproveAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return l.transition(ctx, caller, requester, "approveAccess",
		StatusRequested, StatusApproved, EventAccessApproved)
}

// RevokeAccess moves the (caller, requester) grant to StatusRevoked.
func (l *BoltLedger) RevokeAccess(ctx context.Context, caller identity.Signer, requester identity.Address) error {
	return l.transition(ctx, caller, requester, "revokeAccess",
		StatusApproved, StatusRevoked, EventAccessRevoked)
}

// transition performs an owner-driven grant transition: the caller is
// the owner, the grant must currently be in from, and moves to to.
func (l *BoltLedger) transition(ctx context.Context, caller identity.Signer, requester identity.Address,
	op string, from, to GrantStatus, evType EventType) error {

	if err := ctx.Err(); err != nil {
		return err
	}
	addr, err := authenticate(caller, op, string(requester))
	if err != nil {
		return err
	}
	if !requester.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, requester)
	}

	err = l.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketOwners).Get([]byte(addr)) == nil {
			return fmt.Errorf("%w: %s", ErrNotRegistered, addr)
		}

		grants := tx.Bucket(bucketGrants)
		current, err := readGrant(grants, addr, requester)
		if err != nil {
			return err
		}
		if current.Status != from {
			return fmt.Errorf("%w: %s requires status %s, have %s",
				ErrInvalidTransition, op, from, current.Status)
		}

		if err := writeGrant(grants, addr, requester, to); err != nil {
			return err
		}
		_, err = appendEvent(tx, Event{
			Type:      evType,
			Owner:     addr,
			Requester: requester,
			Timestamp: time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{"owner": addr, "requester": requester, "status": to.String()}).Info("grant updated")
	return nil
}

// readGrant loads a grant, returning a zero (StatusNone) grant when
// none is stored.
func readGrant(b *bbolt.Bucket, owner, requester identity.Address) (Grant, error) {
	data := b.Get(grantKey(owner, requester))
	if data == nil {
		return Grant{Status: StatusNone}, nil
	}
	var g Grant
	if err := decodeGob(data, &g); err != nil {
		return Grant{}, fmt.Errorf("decode grant: %w", err)
	}
	return g, nil
}

func writeGrant(b *bbolt.Bucket, owner, requester identity.Address, status GrantStatus) error {
	data, err := encodeGob(&Grant{Status: status, LastUpdated: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode grant: %w", err)
	}
	if err := b.Put(grantKey(owner, requester), data); err != nil {
		return fmt.Errorf("put grant: %w", err)
	}
	return nil
}

// --- reads ---

// IsOwner reports whether addr is a registered owner.
func (l *BoltLedger) IsOwner(ctx context.Context, addr identity.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var registered bool
	err := l.db.View(func(tx *bbolt.Tx) error {
		registered = tx.Bucket(bucketOwners).Get([]byte(addr)) != nil
		return nil
	})
	return registered, err
}

// CheckAccess reports whether requester holds an approved grant.
func (l *BoltLedger) CheckAccess(ctx context.Context, owner, requester identity.Address) (bool, error) {
	status, err := l.GrantState(ctx, owner, requester)
	if err != nil {
		return false, err
	}
	return status == StatusApproved, nil
}

// GrantState returns the current status of the (owner, requester) grant.
func (l *BoltLedger) GrantState(ctx context.Context, owner, requester identity.Address) (GrantStatus, error) {
	if err := ctx.Err(); err != nil {
		return StatusNone, err
	}
	var status GrantStatus
	err := l.db.View(func(tx *bbolt.Tx) error {
		g, err := readGrant(tx.Bucket(bucketGrants), owner, requester)
		if err != nil {
			return err
		}
		status = g.Status
		return nil
	})
	return status, err
}

// ReadPointer returns owner's current record pointer, gated by the
// grant state: only the owner and approved requesters may read it.
func (l *BoltLedger) ReadPointer(ctx context.Context, owner, caller identity.Address) (*RecordPointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ptr RecordPointer
	err := l.db.View(func(tx *bbolt.Tx) error {
		if caller != owner {
			g, err := readGrant(tx.Bucket(bucketGrants), owner, caller)
			if err != nil {
				return err
			}
			if g.Status != StatusApproved {
				return fmt.Errorf("%w: %s has status %s for owner %s",
					ErrNotAuthorized, caller, g.Status, owner)
			}
		}

		data := tx.Bucket(bucketPointers).Get([]byte(owner))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrPointerNotFound, owner)
		}
		if err := decodeGob(data, &ptr); err != nil {
			return fmt.Errorf("decode pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ptr, nil
}

// PointerHistory returns owner's published pointers, oldest first. In
// SingleVersion mode only the live pointer is known, so the result has
// at most one element.
func (l *BoltLedger) PointerHistory(ctx context.Context, owner identity.Address) ([]RecordPointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ptrs []RecordPointer
	err := l.db.View(func(tx *bbolt.Tx) error {
		if l.history == SingleVersion {
			data := tx.Bucket(bucketPointers).Get([]byte(owner))
			if data == nil {
				return nil
			}
			var ptr RecordPointer
			if err := decodeGob(data, &ptr); err != nil {
				return fmt.Errorf("decode pointer: %w", err)
			}
			ptrs = append(ptrs, ptr)
			return nil
		}

		prefix := []byte(owner)
		c := tx.Bucket(bucketPtrHistory).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var ptr RecordPointer
			if err := decodeGob(v, &ptr); err != nil {
				return fmt.Errorf("decode pointer history entry: %w", err)
			}
			ptrs = append(ptrs, ptr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ptrs, nil
}

// Events returns the full audit log in ledger order.
func (l *BoltLedger) Events(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []Event
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var ev Event
			if err := decodeGob(v, &ev); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			events = append(events, ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Package custody composes the cipher, fingerprint, blob store and
// ledger into the two data-custody pipelines: Upload (encrypt,
// fingerprint, store, publish) and Retrieve (resolve, fetch, verify,
// decrypt). Retrieval is gated by the ledger's permission check and
// fails closed: no step after a failed integrity or authorization
// check ever runs.
package custody

import (
	"github.com/sirupsen/logrus"

	"github.com/prismgenomics/libprism-go/ipfs"
	"github.com/prismgenomics/libprism-go/keystore"
	"github.com/prismgenomics/libprism-go/ledger"
)

// Engine drives the custody pipelines against an injected blob store
// and ledger. A single Engine is safe for concurrent use: every
// pipeline invocation is independent and the dependencies guard their
// own state.
type Engine struct {
	blob   ipfs.BlobStore
	ledger ledger.Service
	keys   *keystore.Keystore
	log    *logrus.Logger

	unpinReplaced bool
}

// EngineConfig wires an Engine. Blob and Ledger are required. Keys is
// optional and only needed for the passphrase-based operations. With
// UnpinReplaced set, a successful upload unpins the blob the previous
// pointer referenced, so single-version ledgers do not accumulate
// orphans.
type EngineConfig struct {
	Blob          ipfs.BlobStore
	Ledger        ledger.Service
	Keys          *keystore.Keystore
	Log           *logrus.Logger
	UnpinReplaced bool
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Blob == nil || cfg.Ledger == nil {
		return nil, ErrNilDependency
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
		cfg.Log.SetLevel(logrus.WarnLevel)
	}
	return &Engine{
		blob:          cfg.Blob,
		ledger:        cfg.Ledger,
		keys:          cfg.Keys,
		log:           cfg.Log,
		unpinReplaced: cfg.UnpinReplaced,
	}, nil
}

// Ledger exposes the underlying permission ledger for grant management
// and audit queries.
func (e *Engine) Ledger() ledger.Service { return e.ledger }

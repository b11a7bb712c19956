package custody

import (
	"errors"
	"fmt"

	"github.com/prismgenomics/libprism-go/fingerprint"
)

var (
	// ErrTamperDetected is returned when a fetched payload does not
	// match the ledger's fingerprint. The payload is never decrypted.
	ErrTamperDetected = errors.New("custody: stored payload does not match ledger fingerprint")

	// ErrNilDependency is returned when the engine is constructed
	// without a blob store or ledger.
	ErrNilDependency = errors.New("custody: nil dependency")

	// ErrNoKeystore is returned when a passphrase operation is used on
	// an engine built without a keystore.
	ErrNoKeystore = errors.New("custody: no keystore configured")
)

// PublishError reports an upload whose blob was stored but whose
// pointer could not be published. The caller retries the publish with
// the same CID and fingerprint; re-encrypting would produce a
// different payload and orphan this blob.
type PublishError struct {
	CID         string
	Fingerprint fingerprint.Digest
	Err         error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("custody: blob %s stored but pointer not published: %v", e.CID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

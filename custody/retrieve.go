package custody

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/prismgenomics/libprism-go/aes256"
	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
)

// Retrieve runs the retrieval pipeline on behalf of caller: resolve
// owner's pointer (authorization happens here and fails closed), fetch
// the payload, verify its fingerprint, and only then decrypt with key.
//
// A fingerprint mismatch returns ErrTamperDetected without decrypting;
// a matching fingerprint with a failing AEAD tag (wrong key, or
// tampering that also forged the ledger) surfaces as
// aes256.ErrAuthenticationFailed. Neither path returns any plaintext.
func (e *Engine) Retrieve(ctx context.Context, owner, caller identity.Address, key []byte) ([]byte, error) {
	ptr, err := e.ledger.ReadPointer(ctx, owner, caller)
	if err != nil {
		return nil, err
	}

	payload, err := e.blob.Get(ctx, ptr.ContentID)
	if err != nil {
		return nil, err
	}

	if !fingerprint.Verify(payload, ptr.Fingerprint) {
		return nil, fmt.Errorf("%w: cid %s", ErrTamperDetected, ptr.ContentID)
	}

	plaintext, err := aes256.Decrypt(payload, key)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"owner":  owner,
		"caller": caller,
		"cid":    ptr.ContentID,
		"size":   len(plaintext),
	}).Info("retrieve complete")

	return plaintext, nil
}

// RetrieveToFile retrieves owner's record and writes the plaintext to
// path with mode 0600. A partially written file is removed on failure.
func (e *Engine) RetrieveToFile(ctx context.Context, owner, caller identity.Address, key []byte, path string) error {
	plaintext, err := e.Retrieve(ctx, owner, caller, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, plaintext, 0600); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("custody: write plaintext: %w", err)
	}
	return nil
}

// RetrieveWithPassphrase retrieves using the data key stored in the
// local keystore under owner's address.
func (e *Engine) RetrieveWithPassphrase(ctx context.Context, owner, caller identity.Address, passphrase string) ([]byte, error) {
	if e.keys == nil {
		return nil, ErrNoKeystore
	}
	key, err := e.keys.Load(owner, passphrase)
	if err != nil {
		return nil, err
	}
	return e.Retrieve(ctx, owner, caller, key)
}

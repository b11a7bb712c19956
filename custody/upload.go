package custody

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/prismgenomics/libprism-go/aes256"
	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
	"github.com/prismgenomics/libprism-go/keystore"
	"github.com/prismgenomics/libprism-go/ledger"
)

// UploadResult reports a completed upload.
type UploadResult struct {
	CID         string
	Fingerprint fingerprint.Digest
	Size        int
}

// Upload runs the owner's custody pipeline: encrypt plaintext under
// key, fingerprint the ciphertext, store it, and publish the pointer.
//
// If the blob is stored but the publish fails, Upload returns a
// *PublishError carrying the CID and fingerprint; the caller finishes
// the upload by retrying Publish with those exact values.
func (e *Engine) Upload(ctx context.Context, owner identity.Signer, plaintext, key []byte) (*UploadResult, error) {
	payload, err := aes256.Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	fp := fingerprint.Hash(payload)

	// Remember the pointer being replaced so its blob can be unpinned
	// after the new one is live.
	var replaced *ledger.RecordPointer
	if e.unpinReplaced {
		addr := owner.Address()
		replaced, err = e.ledger.ReadPointer(ctx, addr, addr)
		if err != nil && !errors.Is(err, ledger.ErrPointerNotFound) {
			return nil, err
		}
	}

	cid, err := e.blob.Put(ctx, payload, "")
	if err != nil {
		return nil, err
	}

	if err := e.ledger.PublishPointer(ctx, owner, cid, fp); err != nil {
		return nil, &PublishError{CID: cid, Fingerprint: fp, Err: err}
	}

	if replaced != nil && replaced.ContentID != cid {
		if err := e.blob.Unpin(ctx, replaced.ContentID); err != nil {
			// The upload itself succeeded; the orphan is only a
			// storage-cost problem.
			e.log.WithFields(logrus.Fields{"cid": replaced.ContentID}).
				WithError(err).Warn("could not unpin replaced blob")
		}
	}

	e.log.WithFields(logrus.Fields{
		"owner": owner.Address(),
		"cid":   cid,
		"size":  len(payload),
	}).Info("upload complete")

	return &UploadResult{CID: cid, Fingerprint: fp, Size: len(payload)}, nil
}

// Publish records a pointer for a blob that is already stored. It is
// the retry path after an Upload failed with *PublishError.
func (e *Engine) Publish(ctx context.Context, owner identity.Signer, cid string, fp fingerprint.Digest) error {
	return e.ledger.PublishPointer(ctx, owner, cid, fp)
}

// UploadFile uploads the contents of path.
func (e *Engine) UploadFile(ctx context.Context, owner identity.Signer, path string, key []byte) (*UploadResult, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("custody: read %s: %w", filepath.Base(path), err)
	}
	return e.Upload(ctx, owner, plaintext, key)
}

// UploadWithPassphrase uploads using the owner's data key from the
// keystore. If the owner has no stored key yet, a fresh one is
// generated and saved under the passphrase first.
func (e *Engine) UploadWithPassphrase(ctx context.Context, owner identity.Signer, plaintext []byte, passphrase string) (*UploadResult, error) {
	key, err := e.ownerKey(owner.Address(), passphrase)
	if err != nil {
		return nil, err
	}
	return e.Upload(ctx, owner, plaintext, key)
}

// ownerKey loads the owner's data key, generating and persisting one
// on first use.
func (e *Engine) ownerKey(addr identity.Address, passphrase string) ([]byte, error) {
	if e.keys == nil {
		return nil, ErrNoKeystore
	}
	key, err := e.keys.Load(addr, passphrase)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keystore.ErrKeyNotFound) {
		return nil, err
	}

	key, err = aes256.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := e.keys.Save(addr, key, passphrase); err != nil {
		return nil, err
	}
	e.log.WithField("owner", addr).Info("generated new data key")
	return key, nil
}

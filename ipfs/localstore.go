package ipfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prismgenomics/libprism-go/fingerprint"
)

// LocalStore implements BlobStore on the local filesystem for offline and
// development use. Content is addressed by the BLAKE3 digest of the bytes:
// the CID is the digest's hex form. Blobs are stored at
// {baseDir}/{cid[:2]}/{cid}, sharded by the first byte.
type LocalStore struct {
	baseDir string
	mu      sync.RWMutex
}

// Compile-time interface check.
var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates a local blob store rooted at baseDir. The directory
// is created if it does not exist.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// blobPath returns the sharded filesystem path for a CID.
func (ls *LocalStore) blobPath(cid string) string {
	return filepath.Join(ls.baseDir, cid[:2], cid)
}

// validateCID checks that cid parses as a fingerprint digest, which is the
// only CID form this store produces.
func validateCID(cid string) error {
	if _, err := fingerprint.Parse(cid); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCID, cid)
	}
	return nil
}

// Put stores data under its BLAKE3 content identifier. The name label is
// ignored; the local store has no metadata index.
func (ls *LocalStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}

	cid := fingerprint.Hash(data).Hex()

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(ls.baseDir, cid[:2]), 0700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(ls.blobPath(cid), data, 0600); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return cid, nil
}

// Get retrieves content by CID. The content hash is re-checked on read so a
// blob corrupted on disk surfaces as ErrNotFound rather than bad bytes.
func (ls *LocalStore) Get(_ context.Context, cid string) ([]byte, error) {
	if err := validateCID(cid); err != nil {
		return nil, err
	}

	ls.mu.RLock()
	defer ls.mu.RUnlock()

	data, err := os.ReadFile(ls.blobPath(cid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	if fingerprint.Hash(data).Hex() != cid {
		return nil, fmt.Errorf("%w: %s: content does not match identifier", ErrNotFound, cid)
	}
	return data, nil
}

// Unpin removes a blob from local storage.
func (ls *LocalStore) Unpin(_ context.Context, cid string) error {
	if err := validateCID(cid); err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := os.Remove(ls.blobPath(cid)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, cid)
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// List returns all stored CIDs by scanning the shard directories.
func (ls *LocalStore) List(_ context.Context) ([]string, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	shards, err := os.ReadDir(ls.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var cids []string
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(ls.baseDir, shard.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if validateCID(f.Name()) != nil {
				continue // skip foreign files
			}
			cids = append(cids, f.Name())
		}
	}
	return cids, nil
}

// TestAuth always succeeds: local storage has no credentials.
func (ls *LocalStore) TestAuth(_ context.Context) (bool, error) {
	return true, nil
}

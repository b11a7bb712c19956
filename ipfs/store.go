// Package ipfs stores opaque encrypted blobs on a content-addressable
// network. The production backend is a Pinata-compatible pinning service
// reached over HTTPS; a local content-addressed store serves offline and
// development use. Both speak the same narrow contract: put/get bytes by
// content identifier.
package ipfs

import "context"

// BlobStore is the blob storage contract used by the custody pipelines.
// Implementations never see plaintext; every stored blob is an encrypted
// payload.
type BlobStore interface {
	// Put stores data and returns its content identifier. name is a
	// display label for the pinning service; if empty, one is generated.
	Put(ctx context.Context, data []byte, name string) (string, error)

	// Get resolves a content identifier back to bytes. Returns ErrNotFound
	// if the content is unpinned or unknown.
	Get(ctx context.Context, cid string) ([]byte, error)

	// Unpin releases the content. The network may garbage-collect it later.
	Unpin(ctx context.Context, cid string) error

	// List returns the content identifiers of all pinned blobs.
	List(ctx context.Context) ([]string, error)

	// TestAuth reports whether the store accepts our credentials.
	TestAuth(ctx context.Context) (bool, error)
}

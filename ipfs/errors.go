package ipfs

import "errors"

var (
	// ErrStoreUnavailable indicates the pinning service or gateway could not
	// be reached or returned a server error. Retryable with backoff.
	ErrStoreUnavailable = errors.New("ipfs: store unavailable")

	// ErrAuthFailed indicates the API credentials were rejected. Requires
	// operator intervention; never retried automatically.
	ErrAuthFailed = errors.New("ipfs: authentication failed")

	// ErrQuotaExceeded indicates the pinning service refused the upload for
	// quota or rate reasons. Not retryable without operator action.
	ErrQuotaExceeded = errors.New("ipfs: quota exceeded")

	// ErrNotFound indicates no content exists for the given CID (unpinned
	// or expired).
	ErrNotFound = errors.New("ipfs: content not found")

	// ErrInvalidResponse indicates the service returned a malformed response.
	ErrInvalidResponse = errors.New("ipfs: invalid response")

	// ErrInvalidCID indicates a content identifier is empty or malformed.
	ErrInvalidCID = errors.New("ipfs: invalid content identifier")

	// ErrEmptyContent indicates an attempt to store zero bytes.
	ErrEmptyContent = errors.New("ipfs: empty content")

	// ErrMissingCredentials indicates API credentials are not configured.
	ErrMissingCredentials = errors.New("ipfs: missing API credentials")

	// ErrInvalidBaseDir indicates the local store base directory is empty.
	ErrInvalidBaseDir = errors.New("ipfs: base directory must not be empty")

	// ErrIOFailure indicates a local filesystem operation failed.
	ErrIOFailure = errors.New("ipfs: io failure")
)

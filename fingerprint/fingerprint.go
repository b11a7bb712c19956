// Package fingerprint computes BLAKE3 digests over encrypted payloads.
//
// The digest is published on the access ledger next to the content
// identifier so that anyone can detect storage-layer tampering before
// decrypting. It is keyless and independent of the AEAD tag, which
// remains the cryptographic backstop at decrypt time.
package fingerprint

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// ChunkSize is the read size used by HashReader. Streaming bounds peak
// memory for large files; the resulting digest is identical to Hash over
// the same bytes.
const ChunkSize = 64 * 1024

// Digest is a BLAKE3-256 digest of an encrypted payload.
type Digest [Size]byte

// Hex returns the lower-case hex encoding of the digest. This is the
// representation recorded on the ledger.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string { return d.Hex() }

// Parse decodes a 64-character hex string into a Digest.
func Parse(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrInvalidDigest, err)
	}
	if len(b) != Size {
		return d, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidDigest, len(b), Size)
	}
	copy(d[:], b)
	return d, nil
}

// Hash computes the BLAKE3 digest of data in one shot.
func Hash(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// HashReader computes the BLAKE3 digest of everything readable from r,
// processing ChunkSize bytes at a time.
func HashReader(r io.Reader) (Digest, error) {
	var d Digest
	h := blake3.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return d, fmt.Errorf("fingerprint: read: %w", err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Verify reports whether data hashes to expected. The comparison is
// constant-time; the result does not depend on where a mismatch occurs.
func Verify(data []byte, expected Digest) bool {
	actual := Hash(data)
	return subtle.ConstantTimeCompare(actual[:], expected[:]) == 1
}

package custody

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismgenomics/libprism-go/aes256"
	"github.com/prismgenomics/libprism-go/fingerprint"
	"github.com/prismgenomics/libprism-go/identity"
	"github.com/prismgenomics/libprism-go/ipfs"
	"github.com/prismgenomics/libprism-go/keystore"
	"github.com/prismgenomics/libprism-go/ledger"
)

// testEngine wires an Engine against a local blob store, an embedded
// ledger and a keystore, all rooted in a temp dir.
func testEngine(t *testing.T, unpinReplaced bool) (*Engine, *ipfs.LocalStore, *ledger.BoltLedger) {
	t.Helper()
	dir := t.TempDir()

	blob, err := ipfs.NewLocalStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	led, err := ledger.OpenBoltLedger(filepath.Join(dir, "ledger.db"), ledger.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = led.Close() })

	eng, err := NewEngine(EngineConfig{
		Blob:          blob,
		Ledger:        led,
		Keys:          keystore.Open(filepath.Join(dir, "keystore.json")),
		UnpinReplaced: unpinReplaced,
	})
	require.NoError(t, err)
	return eng, blob, led
}

func newSigner(t *testing.T) *identity.KeySigner {
	t.Helper()
	s, err := identity.NewKeySigner()
	require.NoError(t, err)
	return s
}

func newKey(t *testing.T) []byte {
	t.Helper()
	key, err := aes256.GenerateKey()
	require.NoError(t, err)
	return key
}

// --- scenario tests ---

func TestHappyPath(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	doctor := newSigner(t)
	key := newKey(t)
	record := bytes.Repeat([]byte("ACGT"), 1<<18) // 1 MiB

	require.NoError(t, led.RegisterOwner(ctx, owner))

	res, err := eng.Upload(ctx, owner, record, key)
	require.NoError(t, err)
	assert.NotEmpty(t, res.CID)
	assert.Equal(t, len(record)+aes256.MinPayloadLen, res.Size)

	require.NoError(t, led.RequestAccess(ctx, doctor, owner.Address()))
	require.NoError(t, led.ApproveAccess(ctx, owner, doctor.Address()))

	got, err := eng.Retrieve(ctx, owner.Address(), doctor.Address(), key)
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestRetrieveUnauthorizedNeverFetches(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	stranger := newSigner(t)
	key := newKey(t)

	require.NoError(t, led.RegisterOwner(ctx, owner))
	_, err := eng.Upload(ctx, owner, []byte("private genome"), key)
	require.NoError(t, err)

	// Swap in a blob store that fails the test if touched: the
	// authorization check must fail closed before any fetch.
	eng.blob = &ipfs.MockBlobStore{
		GetFn: func(ctx context.Context, cid string) ([]byte, error) {
			t.Fatal("blob store accessed for unauthorized caller")
			return nil, nil
		},
	}

	_, err = eng.Retrieve(ctx, owner.Address(), stranger.Address(), key)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}

func TestRetrieveTamperDetected(t *testing.T) {
	eng, blob, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	key := newKey(t)

	require.NoError(t, led.RegisterOwner(ctx, owner))
	res, err := eng.Upload(ctx, owner, []byte("pristine genome"), key)
	require.NoError(t, err)

	// Serve a payload that differs from the fingerprinted one by a
	// single byte. The local store re-checks content on read, so the
	// corruption has to come from a store that does not.
	original, err := blob.Get(ctx, res.CID)
	require.NoError(t, err)
	corrupted := append([]byte(nil), original...)
	corrupted[len(corrupted)/2] ^= 0x01

	eng.blob = &ipfs.MockBlobStore{
		GetFn: func(ctx context.Context, cid string) ([]byte, error) {
			return corrupted, nil
		},
	}

	_, err = eng.Retrieve(ctx, owner.Address(), owner.Address(), key)
	assert.ErrorIs(t, err, ErrTamperDetected)
	// Classified as tampering, not as an AEAD failure: decrypt never ran.
	assert.NotErrorIs(t, err, aes256.ErrAuthenticationFailed)
}

func TestRetrieveWrongKey(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	require.NoError(t, led.RegisterOwner(ctx, owner))
	_, err := eng.Upload(ctx, owner, []byte("genome"), newKey(t))
	require.NoError(t, err)

	// Fingerprint matches, AEAD tag does not.
	_, err = eng.Retrieve(ctx, owner.Address(), owner.Address(), newKey(t))
	assert.ErrorIs(t, err, aes256.ErrAuthenticationFailed)
}

func TestRevokeClosesRetrieval(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	doctor := newSigner(t)
	key := newKey(t)

	require.NoError(t, led.RegisterOwner(ctx, owner))
	_, err := eng.Upload(ctx, owner, []byte("genome"), key)
	require.NoError(t, err)
	require.NoError(t, led.RequestAccess(ctx, doctor, owner.Address()))
	require.NoError(t, led.ApproveAccess(ctx, owner, doctor.Address()))

	_, err = eng.Retrieve(ctx, owner.Address(), doctor.Address(), key)
	require.NoError(t, err)

	require.NoError(t, led.RevokeAccess(ctx, owner, doctor.Address()))
	_, err = eng.Retrieve(ctx, owner.Address(), doctor.Address(), key)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}

// --- publish failure tests ---

func TestUploadPublishFailureIsRetryable(t *testing.T) {
	dir := t.TempDir()
	blob, err := ipfs.NewLocalStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	owner := newSigner(t)
	key := newKey(t)
	publishCalls := 0

	led := &ledger.MockService{
		PublishPointerFn: func(ctx context.Context, caller identity.Signer, contentID string, fp fingerprint.Digest) error {
			publishCalls++
			if publishCalls == 1 {
				return ledger.ErrUnavailable
			}
			return nil
		},
	}

	eng, err := NewEngine(EngineConfig{Blob: blob, Ledger: led})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Upload(ctx, owner, []byte("genome"), key)
	require.Error(t, err)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.NotEmpty(t, pubErr.CID)

	// The blob is already stored; retrying the publish with the
	// original CID and fingerprint completes the upload without
	// re-encrypting.
	stored, err := blob.Get(ctx, pubErr.CID)
	require.NoError(t, err)
	assert.True(t, fingerprint.Verify(stored, pubErr.Fingerprint))

	require.NoError(t, eng.Publish(ctx, owner, pubErr.CID, pubErr.Fingerprint))
	assert.Equal(t, 2, publishCalls)
}

func TestUploadUnpinsReplacedBlob(t *testing.T) {
	eng, blob, led := testEngine(t, true)
	ctx := context.Background()

	owner := newSigner(t)
	key := newKey(t)
	require.NoError(t, led.RegisterOwner(ctx, owner))

	first, err := eng.Upload(ctx, owner, []byte("version one"), key)
	require.NoError(t, err)
	second, err := eng.Upload(ctx, owner, []byte("version two"), key)
	require.NoError(t, err)
	require.NotEqual(t, first.CID, second.CID)

	// The replaced blob is gone; the live one remains.
	_, err = blob.Get(ctx, first.CID)
	assert.ErrorIs(t, err, ipfs.ErrNotFound)
	_, err = blob.Get(ctx, second.CID)
	assert.NoError(t, err)
}

// --- file and passphrase tests ---

func TestUploadFileRetrieveToFile(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()
	dir := t.TempDir()

	owner := newSigner(t)
	key := newKey(t)
	record := []byte("chr1\t12345\tA\tG\n")

	src := filepath.Join(dir, "genome.vcf")
	require.NoError(t, os.WriteFile(src, record, 0600))

	require.NoError(t, led.RegisterOwner(ctx, owner))
	_, err := eng.UploadFile(ctx, owner, src, key)
	require.NoError(t, err)

	dst := filepath.Join(dir, "genome_out.vcf")
	require.NoError(t, eng.RetrieveToFile(ctx, owner.Address(), owner.Address(), key, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestPassphraseRoundTrip(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	record := []byte("genome under passphrase")

	require.NoError(t, led.RegisterOwner(ctx, owner))

	// First upload generates and stores the data key.
	_, err := eng.UploadWithPassphrase(ctx, owner, record, "correct horse")
	require.NoError(t, err)

	got, err := eng.RetrieveWithPassphrase(ctx, owner.Address(), owner.Address(), "correct horse")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	_, err = eng.RetrieveWithPassphrase(ctx, owner.Address(), owner.Address(), "wrong pass")
	assert.ErrorIs(t, err, keystore.ErrInvalidPassphrase)
}

func TestPassphraseReusesStoredKey(t *testing.T) {
	eng, _, led := testEngine(t, false)
	ctx := context.Background()

	owner := newSigner(t)
	require.NoError(t, led.RegisterOwner(ctx, owner))

	_, err := eng.UploadWithPassphrase(ctx, owner, []byte("first"), "pass")
	require.NoError(t, err)
	key1, err := eng.keys.Load(owner.Address(), "pass")
	require.NoError(t, err)

	_, err = eng.UploadWithPassphrase(ctx, owner, []byte("second"), "pass")
	require.NoError(t, err)
	key2, err := eng.keys.Load(owner.Address(), "pass")
	require.NoError(t, err)

	assert.Equal(t, key1, key2, "second upload reuses the stored data key")
}

func TestPassphraseWithoutKeystore(t *testing.T) {
	dir := t.TempDir()
	blob, err := ipfs.NewLocalStore(dir)
	require.NoError(t, err)

	eng, err := NewEngine(EngineConfig{Blob: blob, Ledger: &ledger.MockService{}})
	require.NoError(t, err)

	owner := newSigner(t)
	_, err = eng.UploadWithPassphrase(context.Background(), owner, []byte("x"), "pass")
	assert.ErrorIs(t, err, ErrNoKeystore)
}

// --- construction and cancellation tests ---

func TestNewEngineNilDependency(t *testing.T) {
	_, err := NewEngine(EngineConfig{})
	assert.ErrorIs(t, err, ErrNilDependency)

	blob, err := ipfs.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = NewEngine(EngineConfig{Blob: blob})
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestUploadContextCanceled(t *testing.T) {
	eng, _, led := testEngine(t, false)

	owner := newSigner(t)
	require.NoError(t, led.RegisterOwner(context.Background(), owner))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Upload(ctx, owner, []byte("genome"), newKey(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.As(err, new(*PublishError)))
}

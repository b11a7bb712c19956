// Package keystore persists per-owner AES-256 data keys in a local
// encrypted JSON record store.
//
// Each entry wraps the owner's data key under a passphrase-derived key
// unique to that entry (fresh salt per save). The keystore file never
// leaves the local machine and is never written to the ledger or the
// blob store.
package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/prismgenomics/libprism-go/aes256"
	"github.com/prismgenomics/libprism-go/identity"
)

const (
	// PBKDF2Iterations is the fixed KDF work factor. High on purpose:
	// the keystore is the offline-brute-force target.
	PBKDF2Iterations = 600_000

	// SaltLen is the per-entry KDF salt length in bytes.
	SaltLen = 16
)

// Entry is the stored record for one owner: the data key encrypted under
// the passphrase-derived wrapping key.
type Entry struct {
	Salt         string `json:"salt"`          // hex, KDF salt
	Nonce        string `json:"nonce"`         // hex, GCM nonce
	EncryptedKey string `json:"encrypted_key"` // hex, ciphertext || tag
}

// Keystore is a local encrypted record store mapping owner addresses to
// wrapped data keys. Concurrent writers to the same file are serialized
// by an exclusive file lock; the write path reloads the file under the
// lock so parallel processes do not clobber each other's entries.
type Keystore struct {
	path string
	mu   sync.Mutex
}

// Open binds a keystore to a file path. The file is created on first Save.
func Open(path string) *Keystore {
	return &Keystore{path: path}
}

// Path returns the keystore file path.
func (ks *Keystore) Path() string { return ks.path }

// Derive computes the 256-bit wrapping key for a passphrase and salt:
// PBKDF2-HMAC-SHA256 with PBKDF2Iterations iterations.
func Derive(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, aes256.KeySize, sha256.New)
}

// Save wraps key under passphrase and writes or overwrites the entry for
// owner. A fresh salt and nonce are used on every call.
func (ks *Keystore) Save(owner identity.Address, key []byte, passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	if len(key) != aes256.KeySize {
		return fmt.Errorf("%w: got %d", aes256.ErrInvalidKey, len(key))
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keystore: generate salt: %w", err)
	}

	payload, err := aes256.Encrypt(key, Derive(passphrase, salt))
	if err != nil {
		return fmt.Errorf("keystore: wrap key: %w", err)
	}

	entry := Entry{
		Salt:         hex.EncodeToString(salt),
		Nonce:        hex.EncodeToString(payload[:aes256.NonceLen]),
		EncryptedKey: hex.EncodeToString(payload[aes256.NonceLen:]),
	}

	return ks.withWriteLock(func(entries map[string]Entry) error {
		entries[entryKey(owner)] = entry
		return nil
	})
}

// Load re-derives the wrapping key and unwraps the owner's data key.
// Returns ErrInvalidPassphrase on authentication failure; whether the
// passphrase was wrong or the entry corrupted is not distinguished.
func (ks *Keystore) Load(owner identity.Address, passphrase string) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	entries, err := ks.read()
	if err != nil {
		return nil, err
	}

	entry, ok := entries[entryKey(owner)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, owner)
	}

	salt, err := hex.DecodeString(entry.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %w", ErrCorruptKeystore, err)
	}
	nonce, err := hex.DecodeString(entry.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", ErrCorruptKeystore, err)
	}
	wrapped, err := hex.DecodeString(entry.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted key: %w", ErrCorruptKeystore, err)
	}

	payload := make([]byte, 0, len(nonce)+len(wrapped))
	payload = append(payload, nonce...)
	payload = append(payload, wrapped...)

	key, err := aes256.Decrypt(payload, Derive(passphrase, salt))
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return key, nil
}

// Delete removes the entry for owner. Irreversible; callers are expected
// to log the operation. Returns ErrKeyNotFound if no entry exists.
func (ks *Keystore) Delete(owner identity.Address) error {
	return ks.withWriteLock(func(entries map[string]Entry) error {
		k := entryKey(owner)
		if _, ok := entries[k]; !ok {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, owner)
		}
		delete(entries, k)
		return nil
	})
}

// List returns the addresses of all owners with stored keys, sorted.
func (ks *Keystore) List() ([]identity.Address, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	entries, err := ks.read()
	if err != nil {
		return nil, err
	}

	owners := make([]identity.Address, 0, len(entries))
	for k := range entries {
		owners = append(owners, identity.Address(k))
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners, nil
}

// withWriteLock executes fn on the freshly-loaded entry map while holding
// the in-process mutex and an exclusive cross-process file lock, then
// persists the map if fn returns nil.
func (ks *Keystore) withWriteLock(fn func(entries map[string]Entry) error) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(ks.path), 0700); err != nil {
		return fmt.Errorf("keystore: create directory: %w", err)
	}

	fl, err := acquireLock(ks.path + ".lock")
	if err != nil {
		return fmt.Errorf("keystore lock: %w", err)
	}
	defer releaseLock(fl)

	entries, err := ks.read()
	if err != nil {
		return err
	}

	if err := fn(entries); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}
	return os.WriteFile(ks.path, data, 0600)
}

// read loads the entry map from disk. Returns an empty map if the file
// does not exist yet.
func (ks *Keystore) read() (map[string]Entry, error) {
	data, err := os.ReadFile(ks.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Entry), nil
		}
		return nil, fmt.Errorf("keystore: read: %w", err)
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeystore, err)
	}
	return entries, nil
}

// entryKey normalizes an owner address for use as a map key.
func entryKey(owner identity.Address) string {
	return strings.ToLower(string(owner))
}

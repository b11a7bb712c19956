// Package identity provides the principal identifiers and the signing
// capability used by every mutating ledger call.
//
// An Address is the lower-case hex encoding of a compressed secp256k1
// public key (33 bytes). The ledger attributes each mutation to the
// address whose key signed it; nothing in this package or its callers
// ever inspects private key material beyond the Signer interface.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// AddressLen is the hex length of an address (33-byte compressed pubkey).
const AddressLen = 66

// Address is a stable, opaque principal identifier derived from a public key.
type Address string

// Valid reports whether the address parses as a compressed public key.
func (a Address) Valid() bool {
	if len(a) != AddressLen {
		return false
	}
	b, err := hex.DecodeString(string(a))
	if err != nil {
		return false
	}
	_, err = ec.PublicKeyFromBytes(b)
	return err == nil
}

// PublicKey parses the address back into its public key.
func (a Address) PublicKey() (*ec.PublicKey, error) {
	b, err := hex.DecodeString(string(a))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	pub, err := ec.PublicKeyFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return pub, nil
}

// Signer is the capability injected into mutating ledger calls. Sign
// produces a DER-encoded ECDSA signature over a 32-byte digest.
type Signer interface {
	Address() Address
	Sign(digest []byte) ([]byte, error)
}

// KeySigner signs with an in-memory secp256k1 private key.
type KeySigner struct {
	priv *ec.PrivateKey
	addr Address
}

// Compile-time interface check.
var _ Signer = (*KeySigner)(nil)

// NewKeySigner generates a fresh key pair.
func NewKeySigner() (*KeySigner, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return signerFromKey(priv), nil
}

// KeySignerFromHex restores a signer from a hex-encoded private key.
func KeySignerFromHex(hexKey string) (*KeySigner, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32", ErrInvalidPrivateKey, len(b))
	}
	priv, _ := ec.PrivateKeyFromBytes(b)
	return signerFromKey(priv), nil
}

func signerFromKey(priv *ec.PrivateKey) *KeySigner {
	return &KeySigner{
		priv: priv,
		addr: Address(hex.EncodeToString(priv.PubKey().Compressed())),
	}
}

// Address returns the signer's principal identifier.
func (s *KeySigner) Address() Address { return s.addr }

// Sign produces a DER-encoded ECDSA signature over digest.
func (s *KeySigner) Sign(digest []byte) ([]byte, error) {
	sig, err := s.priv.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("identity: sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PrivateKeyHex exports the private key for persistence in a local wallet
// file. Callers are responsible for storing it safely.
func (s *KeySigner) PrivateKeyHex() string {
	return hex.EncodeToString(s.priv.Serialize())
}

// Digest computes the 32-byte SHA-256 digest of a canonical message.
func Digest(msg []byte) []byte {
	d := sha256.Sum256(msg)
	return d[:]
}

// VerifySignature checks a DER signature over digest against the public key
// behind addr.
func VerifySignature(addr Address, digest, derSig []byte) error {
	pub, err := addr.PublicKey()
	if err != nil {
		return err
	}
	sig, err := ec.ParseDERSignature(derSig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !sig.Verify(digest, pub) {
		return ErrInvalidSignature
	}
	return nil
}

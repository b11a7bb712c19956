package keystore

import "errors"

var (
	// ErrKeyNotFound indicates no entry exists for the given owner.
	ErrKeyNotFound = errors.New("keystore: no key for owner")

	// ErrInvalidPassphrase indicates decryption of an entry failed. A wrong
	// passphrase and a corrupted entry are deliberately indistinguishable.
	ErrInvalidPassphrase = errors.New("keystore: wrong passphrase or corrupted entry")

	// ErrEmptyPassphrase indicates an empty passphrase was supplied.
	ErrEmptyPassphrase = errors.New("keystore: passphrase must not be empty")

	// ErrCorruptKeystore indicates the keystore file could not be parsed.
	ErrCorruptKeystore = errors.New("keystore: corrupt keystore file")
)

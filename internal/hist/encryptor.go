package hist

import "io"

// Encryptor seals objects before they are written to the vault.
// Encryption needs only the public key; decryption needs the private key,
// which Unlock recovers with the user's passphrase.
type Encryptor interface {
	// Setup generates a key pair once, during `hist config keys init`. The
	// public key is stored in plaintext and the private key is encrypted
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext for
	// the rest of the process. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the keys Unlock needs exist.
	IsConfigured() bool

	// NeedsPassphrase reports whether Unlock uses its passphrase argument.
	NeedsPassphrase() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

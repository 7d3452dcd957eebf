package testutil

import "hist-go/internal/encryption"

// NewTestEncryptor creates a deterministic encryptor whose output differs
// from its input.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

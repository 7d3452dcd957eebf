package encryption

import (
	"fmt"
	"io"

	"hist-go/internal/hist"
)

// NoneEncryptor stores objects as plaintext. It has no keys, so it is
// always configured and unlocks without a passphrase.
type NoneEncryptor struct{}

var _ hist.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error { return nil }

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (NoneEncryptor) Unlock(string) (hist.DecryptionContext, error) {
	return plaintextContext{}, nil
}

func (NoneEncryptor) IsConfigured() bool    { return true }
func (NoneEncryptor) NeedsPassphrase() bool { return false }

type plaintextContext struct{}

func (plaintextContext) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

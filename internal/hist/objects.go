package hist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ErrLocked is returned when sealed content is read before the encryptor
// has been unlocked.
var ErrLocked = errors.New("encryption key is locked")

// objectStore reads and writes whole vault objects, passing them through
// the encryptor.
type objectStore struct {
	vault Vault
	enc   Encryptor
	dec   DecryptionContext
}

func (o *objectStore) put(ctx context.Context, key string, data []byte) error {
	var sealed bytes.Buffer
	if err := o.enc.Encrypt(bytes.NewReader(data), &sealed); err != nil {
		return fmt.Errorf("encrypting %s: %w", key, err)
	}
	if err := o.vault.PutObject(ctx, key, &sealed, int64(sealed.Len())); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (o *objectStore) get(ctx context.Context, key string) ([]byte, error) {
	if o.dec == nil {
		return nil, ErrLocked
	}
	var sealed bytes.Buffer
	if err := o.vault.GetObject(ctx, key, &sealed); err != nil {
		return nil, err
	}
	var plain bytes.Buffer
	if err := o.dec.Decrypt(&sealed, &plain); err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", key, err)
	}
	return plain.Bytes(), nil
}

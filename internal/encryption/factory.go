package encryption

import (
	"fmt"

	"hist-go/internal/config"
	"hist-go/internal/hist"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// An empty type means no encryption.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (hist.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NoneEncryptor{}, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"hist-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// ErrInjected is returned by a FailingVault once it is switched to fail.
var ErrInjected = errors.New("injected vault failure")

// FailingVault wraps a MemoryVault and fails writes while FailPuts is set.
type FailingVault struct {
	*vault.MemoryVault

	mu       sync.Mutex
	failPuts bool
}

func NewFailingVault() *FailingVault {
	return &FailingVault{MemoryVault: NewTestVault()}
}

// FailPuts makes subsequent PutObject calls fail, or succeed again.
func (v *FailingVault) FailPuts(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failPuts = fail
}

func (v *FailingVault) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	v.mu.Lock()
	fail := v.failPuts
	v.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return v.MemoryVault.PutObject(ctx, key, r, size)
}

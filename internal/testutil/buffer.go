package testutil

import "hist-go/internal/buffer"

// DefaultBufferMaxChanges is the queue limit of test buffers.
const DefaultBufferMaxChanges = 100

// NewTestBuffer creates an in-memory change buffer.
func NewTestBuffer() *buffer.Buffer {
	return buffer.NewMemoryChangeBuffer(DefaultBufferMaxChanges)
}

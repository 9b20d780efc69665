package blob

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rl1809/marketplace/internal/port"
)

// MemoryWriter keeps uploaded objects in memory. It backs local mode when no
// bucket is configured.
type MemoryWriter struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ port.BlobWriter = (*MemoryWriter)(nil)

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{objects: make(map[string][]byte)}
}

func (w *MemoryWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("blob: read %s: %w", path, err)
	}
	w.mu.Lock()
	w.objects[path] = b
	w.mu.Unlock()
	return nil
}

func (w *MemoryWriter) Get(path string) ([]byte, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.objects[path]
	return b, ok
}

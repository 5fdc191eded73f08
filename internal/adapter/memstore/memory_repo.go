package memstore

import (
	"context"
	"sync"

	"github.com/example/storefront-commerce/internal/domain"
)

// MemorySnapshotRepo — снимки в памяти процесса: для тестов и запуска
// без базы данных.
type MemorySnapshotRepo struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{store: make(map[string][]byte)}
}

func (r *MemorySnapshotRepo) Save(_ context.Context, key string, raw []byte) error {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	r.mu.Lock()
	r.store[key] = cp
	r.mu.Unlock()
	return nil
}

func (r *MemorySnapshotRepo) Load(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

var _ domain.SnapshotRepository = (*MemorySnapshotRepo)(nil)

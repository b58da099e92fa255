package store

import (
	"sync"

	"github.com/angganurf/wunderland-sol/pkg/models"
)

// Meta is the ledger-wide bookkeeping committed with every transaction.
// Minted is the total value ever credited by the host; the sum of all
// balances always equals it.
type Meta struct {
	Slot   uint64 `cbor:"1,keyasint"`
	Minted uint64 `cbor:"2,keyasint"`
}

// ChangeSet is everything one transaction writes. Backends apply it
// atomically or not at all.
type ChangeSet struct {
	Meta     Meta
	Records  map[models.Key][]byte
	Lamports map[models.Key]uint64
}

// Backend is committed ledger state.
type Backend interface {
	Record(key models.Key) ([]byte, bool, error)
	Lamports(key models.Key) (uint64, error)
	Meta() (Meta, error)
	ForEachBalance(fn func(key models.Key, lamports uint64) error) error
	Commit(cs ChangeSet) error
	Close() error
}

// MemoryBackend keeps state in process memory only.
type MemoryBackend struct {
	mu       sync.RWMutex
	records  map[models.Key][]byte
	lamports map[models.Key]uint64
	meta     Meta
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records:  make(map[models.Key][]byte),
		lamports: make(map[models.Key]uint64),
	}
}

// NewMemoryBackendFrom seeds a memory backend with decoded state. The maps
// are taken over by the backend.
func NewMemoryBackendFrom(meta Meta, records map[models.Key][]byte, lamports map[models.Key]uint64) *MemoryBackend {
	b := NewMemoryBackend()
	if records != nil {
		b.records = records
	}
	if lamports != nil {
		b.lamports = lamports
	}
	b.meta = meta
	return b
}

func (b *MemoryBackend) Record(key models.Key) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.records[key]
	return data, ok, nil
}

func (b *MemoryBackend) Lamports(key models.Key) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lamports[key], nil
}

func (b *MemoryBackend) Meta() (Meta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meta, nil
}

func (b *MemoryBackend) ForEachBalance(fn func(models.Key, uint64) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for key, lamports := range b.lamports {
		if err := fn(key, lamports); err != nil {
			return err
		}
	}
	return nil
}

func (b *MemoryBackend) Commit(cs ChangeSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(cs)
	return nil
}

func (b *MemoryBackend) apply(cs ChangeSet) {
	for key, data := range cs.Records {
		b.records[key] = data
	}
	for key, lamports := range cs.Lamports {
		if lamports == 0 {
			delete(b.lamports, key)
			continue
		}
		b.lamports[key] = lamports
	}
	b.meta = cs.Meta
}

// Export copies the full state. Used by backends that persist whole
// snapshots.
func (b *MemoryBackend) Export() (Meta, map[models.Key][]byte, map[models.Key]uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meta, cloneRecords(b.records), cloneLamports(b.lamports)
}

// Preview returns the full state as it would look after cs, without applying it.
func (b *MemoryBackend) Preview(cs ChangeSet) (Meta, map[models.Key][]byte, map[models.Key]uint64) {
	next := NewMemoryBackendFrom(b.Export())
	next.apply(cs)
	return next.meta, next.records, next.lamports
}

func (b *MemoryBackend) Close() error { return nil }

func cloneRecords(in map[models.Key][]byte) map[models.Key][]byte {
	out := make(map[models.Key][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func cloneLamports(in map[models.Key]uint64) map[models.Key]uint64 {
	out := make(map[models.Key]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

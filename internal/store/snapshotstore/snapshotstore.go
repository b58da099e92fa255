// Package snapshotstore keeps ledger state in memory and persists the whole
// state as one encrypted snapshot file after every commit.
package snapshotstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/angganurf/wunderland-sol/internal/securestore"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

var ErrSecretRequired = errors.New("snapshotstore: path and secret are required")

type recordEntry struct {
	Key  models.Key `cbor:"1,keyasint"`
	Data []byte     `cbor:"2,keyasint"`
}

type balanceEntry struct {
	Key      models.Key `cbor:"1,keyasint"`
	Lamports uint64     `cbor:"2,keyasint"`
}

type snapshot struct {
	Meta     store.Meta     `cbor:"1,keyasint"`
	Records  []recordEntry  `cbor:"2,keyasint"`
	Balances []balanceEntry `cbor:"3,keyasint"`
}

// Backend serves reads from memory. A commit is applied in memory only after
// the new snapshot reached disk.
type Backend struct {
	mu     sync.Mutex
	path   string
	secret string
	mem    *store.MemoryBackend
}

func Open(path, secret string) (*Backend, error) {
	path, secret = strings.TrimSpace(path), strings.TrimSpace(secret)
	if path == "" || secret == "" {
		return nil, ErrSecretRequired
	}
	b := &Backend{path: path, secret: secret, mem: store.NewMemoryBackend()}
	plain, err := securestore.ReadDecryptedFile(path, secret)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", path, err)
	}
	var snap snapshot
	if err := store.Decode(plain, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	records := make(map[models.Key][]byte, len(snap.Records))
	for _, e := range snap.Records {
		records[e.Key] = e.Data
	}
	lamports := make(map[models.Key]uint64, len(snap.Balances))
	for _, e := range snap.Balances {
		lamports[e.Key] = e.Lamports
	}
	b.mem = store.NewMemoryBackendFrom(snap.Meta, records, lamports)
	return b, nil
}

func (b *Backend) Record(key models.Key) ([]byte, bool, error) { return b.mem.Record(key) }
func (b *Backend) Lamports(key models.Key) (uint64, error) { return b.mem.Lamports(key) }
func (b *Backend) Meta() (store.Meta, error) { return b.mem.Meta() }

func (b *Backend) ForEachBalance(fn func(models.Key, uint64) error) error {
	return b.mem.ForEachBalance(fn)
}

func (b *Backend) Commit(cs store.ChangeSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	payload, err := encodeSnapshot(b.mem.Preview(cs))
	if err != nil {
		return err
	}
	if err := securestore.WriteEncryptedFile(b.path, b.secret, payload); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return b.mem.Commit(cs)
}

func (b *Backend) Close() error { return nil }

func encodeSnapshot(meta store.Meta, records map[models.Key][]byte, lamports map[models.Key]uint64) ([]byte, error) {
	snap := snapshot{
		Meta:     meta,
		Records:  make([]recordEntry, 0, len(records)),
		Balances: make([]balanceEntry, 0, len(lamports)),
	}
	for k, v := range records {
		snap.Records = append(snap.Records, recordEntry{Key: k, Data: v})
	}
	for k, v := range lamports {
		snap.Balances = append(snap.Balances, balanceEntry{Key: k, Lamports: v})
	}
	slices.SortFunc(snap.Records, func(a, b recordEntry) int { return bytes.Compare(a.Key[:], b.Key[:]) })
	slices.SortFunc(snap.Balances, func(a, b balanceEntry) int { return bytes.Compare(a.Key[:], b.Key[:]) })
	return store.Encode(snap)
}

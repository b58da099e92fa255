package store

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

var ErrClosed = errors.New("store is closed")

// Store serializes ledger transactions over a Backend. Update runs one
// read-write transaction at a time; View runs concurrently with other views.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	closed  bool
}

func New(backend Backend) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{backend: backend}
}

// Update runs fn in a new transaction. Writes become visible only if fn
// returns nil, the balance audit passes and the backend commit succeeds.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	meta, err := s.backend.Meta()
	if err != nil {
		return contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	tx := newTx(s.backend, meta.Slot+1, false)
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.audit(); err != nil {
		return err
	}
	minted, ok := models.CheckedAdd(meta.Minted, tx.credited)
	if !ok {
		return contracts.ErrArithmeticOverflow
	}
	cs := ChangeSet{
		Meta:     Meta{Slot: tx.slot, Minted: minted},
		Records:  tx.records,
		Lamports: tx.lamports,
	}
	if err := s.backend.Commit(cs); err != nil {
		return contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return nil
}

// View runs fn against committed state. Any write fails with
// ErrReadOnlyTransaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	meta, err := s.backend.Meta()
	if err != nil {
		return contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return fn(newTx(s.backend, meta.Slot, true))
}

// Slot returns the slot of the last committed transaction.
func (s *Store) Slot() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, err := s.backend.Meta()
	if err != nil {
		return 0, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return meta.Slot, nil
}

// Supply reports minted value and the sum of every balance. They are equal
// unless committed state was corrupted outside the store.
func (s *Store) Supply() (minted uint64, held *uint256.Int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, err := s.backend.Meta()
	if err != nil {
		return 0, nil, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	held = new(uint256.Int)
	err = s.backend.ForEachBalance(func(_ models.Key, lamports uint64) error {
		held.AddUint64(held, lamports)
		return nil
	})
	if err != nil {
		return 0, nil, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return meta.Minted, held, nil
}

// Audit fails with ErrConservationViolated when balances and minted supply
// disagree.
func (s *Store) Audit() error {
	minted, held, err := s.Supply()
	if err != nil {
		return err
	}
	if !held.Eq(uint256.NewInt(minted)) {
		return contracts.ErrConservationViolated
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

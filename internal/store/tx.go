package store

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// Tx is an overlay over committed state. Nothing it writes is visible
// outside the transaction until the store commits it.
type Tx struct {
	backend  Backend
	slot     uint64
	readOnly bool

	records  map[models.Key][]byte
	lamports map[models.Key]uint64
	before   map[models.Key]uint64
	credited uint64
}

func newTx(backend Backend, slot uint64, readOnly bool) *Tx {
	return &Tx{
		backend:  backend,
		slot:     slot,
		readOnly: readOnly,
		records:  make(map[models.Key][]byte),
		lamports: make(map[models.Key]uint64),
		before:   make(map[models.Key]uint64),
	}
}

// Slot is the sequence number this transaction commits at.
func (tx *Tx) Slot() uint64 {
	return tx.slot
}

func (tx *Tx) raw(key models.Key) ([]byte, bool, error) {
	if data, ok := tx.records[key]; ok {
		return data, true, nil
	}
	data, ok, err := tx.backend.Record(key)
	if err != nil {
		return nil, false, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return data, ok, nil
}

// Exists reports whether a record is stored at key.
func (tx *Tx) Exists(key models.Key) (bool, error) {
	_, ok, err := tx.raw(key)
	return ok, err
}

func (tx *Tx) write(key models.Key, v any) error {
	if tx.readOnly {
		return contracts.ErrReadOnlyTransaction
	}
	data, err := Encode(v)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	tx.records[key] = data
	return nil
}

// Get decodes the record at key. Missing records fail with
// ErrAccountNotInitialized.
func Get[T any](tx *Tx, key models.Key) (T, error) {
	var out T
	data, ok, err := tx.raw(key)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, contracts.ErrAccountNotInitialized
	}
	if err := Decode(data, &out); err != nil {
		return out, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return out, nil
}

// Lookup is Get that reports absence instead of failing.
func Lookup[T any](tx *Tx, key models.Key) (T, bool, error) {
	out, err := Get[T](tx, key)
	if errors.Is(err, contracts.ErrAccountNotInitialized) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// Create stores a new record. An occupied key fails with
// ErrAccountAlreadyInUse, which is how per-key uniqueness is enforced.
func Create[T any](tx *Tx, key models.Key, v T) error {
	ok, err := tx.Exists(key)
	if err != nil {
		return err
	}
	if ok {
		return contracts.ErrAccountAlreadyInUse
	}
	return tx.write(key, v)
}

// Put overwrites an existing record.
func Put[T any](tx *Tx, key models.Key, v T) error {
	ok, err := tx.Exists(key)
	if err != nil {
		return err
	}
	if !ok {
		return contracts.ErrAccountNotInitialized
	}
	return tx.write(key, v)
}

// Lamports returns the value held at key.
func (tx *Tx) Lamports(key models.Key) (uint64, error) {
	if v, ok := tx.lamports[key]; ok {
		return v, nil
	}
	v, err := tx.backend.Lamports(key)
	if err != nil {
		return 0, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	return v, nil
}

func (tx *Tx) setLamports(key models.Key, v uint64) error {
	if tx.readOnly {
		return contracts.ErrReadOnlyTransaction
	}
	if _, seen := tx.before[key]; !seen {
		prev, err := tx.Lamports(key)
		if err != nil {
			return err
		}
		tx.before[key] = prev
	}
	tx.lamports[key] = v
	return nil
}

// Transfer moves amount from one balance to another with checked arithmetic.
func (tx *Tx) Transfer(from, to models.Key, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	src, err := tx.Lamports(from)
	if err != nil {
		return err
	}
	dst, err := tx.Lamports(to)
	if err != nil {
		return err
	}
	nextSrc, ok := models.CheckedSub(src, amount)
	if !ok {
		return contracts.ErrInsufficientFunds
	}
	nextDst, ok := models.CheckedAdd(dst, amount)
	if !ok {
		return contracts.ErrArithmeticOverflow
	}
	if err := tx.setLamports(from, nextSrc); err != nil {
		return err
	}
	return tx.setLamports(to, nextDst)
}

// Credit mints amount into key. Only the host faucet uses it.
func (tx *Tx) Credit(to models.Key, amount uint64) error {
	dst, err := tx.Lamports(to)
	if err != nil {
		return err
	}
	next, ok := models.CheckedAdd(dst, amount)
	if !ok {
		return contracts.ErrArithmeticOverflow
	}
	credited, ok := models.CheckedAdd(tx.credited, amount)
	if !ok {
		return contracts.ErrArithmeticOverflow
	}
	if err := tx.setLamports(to, next); err != nil {
		return err
	}
	tx.credited = credited
	return nil
}

// audit checks that the balances this transaction touched changed only by
// the amount it minted.
func (tx *Tx) audit() error {
	before := new(uint256.Int)
	after := new(uint256.Int)
	for key, prev := range tx.before {
		before.AddUint64(before, prev)
		after.AddUint64(after, tx.lamports[key])
	}
	before.AddUint64(before, tx.credited)
	if !before.Eq(after) {
		return contracts.ErrConservationViolated
	}
	return nil
}

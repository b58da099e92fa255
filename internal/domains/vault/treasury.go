package vault

import (
	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// OpenTreasury creates the singleton treasury owned by authority, who also
// funds its rent floor.
func OpenTreasury(tx *store.Tx, tctx contracts.TxContext, authority models.Key) (models.Key, error) {
	addr := addressing.New(tctx.Program).Treasury()
	rec := GlobalTreasury{Authority: authority, Bump: addressing.CanonicalBump}
	if err := store.Create(tx, addr, rec); err != nil {
		return models.Key{}, err
	}
	if err := FundRent(tx, tctx, authority, addr, GlobalTreasuryLen); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

func LoadTreasury(tx *store.Tx, tctx contracts.TxContext) (models.Key, GlobalTreasury, error) {
	addr := addressing.New(tctx.Program).Treasury()
	rec, err := store.Get[GlobalTreasury](tx, addr)
	if err != nil {
		return addr, rec, err
	}
	return addr, rec, nil
}

// Collect moves amount from payer into the treasury and adds it to
// total_collected.
func Collect(tx *store.Tx, tctx contracts.TxContext, payer models.Key, amount uint64) error {
	if amount == 0 {
		return nil
	}
	addr, rec, err := LoadTreasury(tx, tctx)
	if err != nil {
		return err
	}
	total, ok := models.CheckedAdd(rec.TotalCollected, amount)
	if !ok {
		return contracts.ErrArithmeticOverflow
	}
	if err := tx.Transfer(payer, addr, amount); err != nil {
		return err
	}
	rec.TotalCollected = total
	return store.Put(tx, addr, rec)
}

// WithdrawTreasury pays collected value out to the given wallet. Only the
// treasury authority may do this, and the rent floor stays behind.
func WithdrawTreasury(tx *store.Tx, tctx contracts.TxContext, caller, to models.Key, amount uint64) error {
	if amount == 0 {
		return contracts.ErrInvalidAmount
	}
	addr, rec, err := LoadTreasury(tx, tctx)
	if err != nil {
		return err
	}
	if caller != rec.Authority {
		return contracts.ErrUnauthorizedAuthority
	}
	return TransferFrom(tx, tctx, addr, GlobalTreasuryLen, to, amount, contracts.ErrInsufficientTreasury)
}

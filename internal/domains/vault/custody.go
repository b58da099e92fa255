package vault

import (
	"errors"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// FundRent moves the rent floor for a record of dataLen bytes from payer into
// account. A payer that cannot cover it fails with ErrInsufficientFunds.
func FundRent(tx *store.Tx, tctx contracts.TxContext, payer, account models.Key, dataLen uint64) error {
	return tx.Transfer(payer, account, tctx.Policy.RentFloor(dataLen))
}

// Available is the part of account's balance above its rent floor.
func Available(tx *store.Tx, tctx contracts.TxContext, account models.Key, dataLen uint64) (uint64, error) {
	held, err := tx.Lamports(account)
	if err != nil {
		return 0, err
	}
	spare, ok := models.CheckedSub(held, tctx.Policy.RentFloor(dataLen))
	if !ok {
		return 0, nil
	}
	return spare, nil
}

// TransferFrom pays amount out of a custodial account, keeping its rent floor.
// Shortfalls are reported as short.
func TransferFrom(tx *store.Tx, tctx contracts.TxContext, account models.Key, dataLen uint64, to models.Key, amount uint64, short error) error {
	spare, err := Available(tx, tctx, account, dataLen)
	if err != nil {
		return err
	}
	if amount > spare {
		return short
	}
	return mapTransferError(tx.Transfer(account, to, amount), short)
}

// mapTransferError reports a payer shortfall with the caller's domain error.
func mapTransferError(err, short error) error {
	if errors.Is(err, contracts.ErrInsufficientFunds) {
		return short
	}
	return err
}

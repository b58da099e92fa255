package tips

import (
	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/enclave"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/domains/vault"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

type SubmittedTip struct {
	Tip       models.Key      `json:"tip"`
	Escrow    models.Key      `json:"escrow"`
	Priority  Priority        `json:"priority"`
	RateLimit TipperRateLimit `json:"rate_limit"`
}

// SubmitTip escrows a tip after the amount, target and rate limit checks.
func SubmitTip(tx *store.Tx, tctx contracts.TxContext, tipper models.Key, req SubmitTipRequest) (SubmittedTip, error) {
	var out SubmittedTip
	if req.Amount < MinAmount {
		return out, contracts.ErrTipBelowMinimum
	}
	if !req.SourceType.Valid() {
		return out, contracts.ErrInvalidSourceType
	}
	if !req.TargetEnclave.IsZero() {
		if _, err := enclave.RequireActive(tx, req.TargetEnclave, contracts.ErrInvalidTargetEnclave); err != nil {
			return out, err
		}
	}

	d := addressing.New(tctx.Program)
	limitAddr := d.RateLimit(tipper)
	limit, exists, err := store.Lookup[TipperRateLimit](tx, limitAddr)
	if err != nil {
		return out, err
	}
	if !exists {
		limit = TipperRateLimit{Tipper: tipper, Bump: addressing.CanonicalBump}
	}
	if out.RateLimit, err = limit.Admit(tctx.Now); err != nil {
		return out, err
	}
	if exists {
		err = store.Put(tx, limitAddr, out.RateLimit)
	} else {
		err = store.Create(tx, limitAddr, out.RateLimit)
	}
	if err != nil {
		return out, err
	}

	out.Tip = d.Tip(tipper, req.Nonce)
	out.Escrow = d.TipEscrow(out.Tip)
	out.Priority = DerivePriority(req.Amount)
	tip := TipAnchor{
		Tipper:        tipper,
		ContentHash:   req.ContentHash,
		Amount:        req.Amount,
		Priority:      out.Priority,
		SourceType:    req.SourceType,
		TargetEnclave: req.TargetEnclave,
		TipNonce:      req.Nonce,
		CreatedAt:     tctx.Now,
		Status:        TipPending,
		Bump:          addressing.CanonicalBump,
	}
	if err := store.Create(tx, out.Tip, tip); err != nil {
		return out, err
	}
	escrow := TipEscrow{Tip: out.Tip, Amount: req.Amount, Bump: addressing.CanonicalBump}
	if err := store.Create(tx, out.Escrow, escrow); err != nil {
		return out, err
	}
	if err := vault.FundRent(tx, tctx, tipper, out.Escrow, TipEscrowLen); err != nil {
		return out, err
	}
	if err := tx.Transfer(tipper, out.Escrow, req.Amount); err != nil {
		return out, err
	}
	return out, nil
}

// pending loads a tip and its escrow and checks that the tip is unresolved
// and fully funded.
func pending(tx *store.Tx, tctx contracts.TxContext, tipAddr models.Key) (TipAnchor, models.Key, TipEscrow, error) {
	var escrow TipEscrow
	tip, err := store.Get[TipAnchor](tx, tipAddr)
	if err != nil {
		return tip, models.Key{}, escrow, err
	}
	if tip.Status != TipPending {
		return tip, models.Key{}, escrow, contracts.ErrTipNotPending
	}
	escrowAddr := addressing.New(tctx.Program).TipEscrow(tipAddr)
	escrow, err = store.Get[TipEscrow](tx, escrowAddr)
	if err != nil {
		return tip, escrowAddr, escrow, err
	}
	if escrow.Tip != tipAddr || escrow.Amount != tip.Amount {
		return tip, escrowAddr, escrow, contracts.ErrEscrowAmountMismatch
	}
	spare, err := vault.Available(tx, tctx, escrowAddr, TipEscrowLen)
	if err != nil {
		return tip, escrowAddr, escrow, err
	}
	if spare < escrow.Amount {
		return tip, escrowAddr, escrow, contracts.ErrEscrowAmountMismatch
	}
	return tip, escrowAddr, escrow, nil
}

func requireRegistrar(tx *store.Tx, tctx contracts.TxContext, caller models.Key) error {
	_, cfg, err := registry.LoadConfig(tx, tctx)
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return contracts.ErrUnauthorizedAuthority
	}
	return nil
}

func resolve(tx *store.Tx, tipAddr models.Key, tip TipAnchor, escrowAddr models.Key, escrow TipEscrow, to TipStatus) error {
	if err := ValidateTipTransition(tip.Status, to); err != nil {
		return err
	}
	tip.Status = to
	escrow.Amount = 0
	if err := store.Put(tx, escrowAddr, escrow); err != nil {
		return err
	}
	return store.Put(tx, tipAddr, tip)
}

type Settlement struct {
	Amount        uint64     `json:"amount"`
	EnclaveOwner  models.Key `json:"enclave_owner"`
	OwnerShare    uint64     `json:"owner_share"`
	TreasuryShare uint64     `json:"treasury_share"`
}

// SettleTip pays an accepted tip out. Enclave-targeted tips send the
// configured share to the enclave creator's owner wallet and the rest to the
// treasury; global tips go wholly to the treasury.
func SettleTip(tx *store.Tx, tctx contracts.TxContext, caller, tipAddr models.Key) (Settlement, error) {
	var out Settlement
	if err := requireRegistrar(tx, tctx, caller); err != nil {
		return out, err
	}
	tip, escrowAddr, escrow, err := pending(tx, tctx, tipAddr)
	if err != nil {
		return out, err
	}
	out.Amount = escrow.Amount
	out.TreasuryShare = escrow.Amount
	if !tip.TargetEnclave.IsZero() {
		target, ok, err := store.Lookup[enclave.Enclave](tx, tip.TargetEnclave)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, contracts.ErrInvalidTargetEnclave
		}
		out.EnclaveOwner = target.CreatorOwner
		out.OwnerShare, out.TreasuryShare, err = SplitSettlement(escrow.Amount, tctx.Policy.EnclaveSharePercent)
		if err != nil {
			return out, err
		}
		if err := tx.Transfer(escrowAddr, out.EnclaveOwner, out.OwnerShare); err != nil {
			return out, err
		}
	}
	if err := vault.Collect(tx, tctx, escrowAddr, out.TreasuryShare); err != nil {
		return out, err
	}
	return out, resolve(tx, tipAddr, tip, escrowAddr, escrow, TipSettled)
}

// RefundTip returns a pending tip to its tipper on the registrar's decision.
func RefundTip(tx *store.Tx, tctx contracts.TxContext, caller, tipAddr models.Key) (uint64, error) {
	if err := requireRegistrar(tx, tctx, caller); err != nil {
		return 0, err
	}
	tip, escrowAddr, escrow, err := pending(tx, tctx, tipAddr)
	if err != nil {
		return 0, err
	}
	return refund(tx, tipAddr, tip, escrowAddr, escrow)
}

// ClaimTimeoutRefund lets the tipper reclaim a tip nobody resolved within
// RefundTimeout.
func ClaimTimeoutRefund(tx *store.Tx, tctx contracts.TxContext, caller, tipAddr models.Key) (uint64, error) {
	tip, err := store.Get[TipAnchor](tx, tipAddr)
	if err != nil {
		return 0, err
	}
	if caller != tip.Tipper {
		return 0, contracts.ErrUnauthorizedTipper
	}
	tip, escrowAddr, escrow, err := pending(tx, tctx, tipAddr)
	if err != nil {
		return 0, err
	}
	if !TimedOut(tip.CreatedAt, tctx.Now) {
		return 0, contracts.ErrTipNotTimedOut
	}
	return refund(tx, tipAddr, tip, escrowAddr, escrow)
}

func refund(tx *store.Tx, tipAddr models.Key, tip TipAnchor, escrowAddr models.Key, escrow TipEscrow) (uint64, error) {
	amount := escrow.Amount
	if err := tx.Transfer(escrowAddr, tip.Tipper, amount); err != nil {
		return 0, err
	}
	return amount, resolve(tx, tipAddr, tip, escrowAddr, escrow, TipRefunded)
}

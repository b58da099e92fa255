package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/enclave"
	"github.com/angganurf/wunderland-sol/internal/domains/entries"
	"github.com/angganurf/wunderland-sol/internal/domains/jobs"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/domains/tips"
	"github.com/angganurf/wunderland-sol/internal/domains/vault"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// get loads one record of type T at addr from a read-only snapshot.
func get[T any](ctx context.Context, l *Ledger, addr models.Key) (T, error) {
	var out T
	err := l.view(ctx, func(tx *store.Tx, _ contracts.TxContext) error {
		var err error
		out, err = store.Get[T](tx, addr)
		return err
	})
	return out, err
}

func (l *Ledger) Config(ctx context.Context) (registry.ProgramConfig, error) {
	var out registry.ProgramConfig
	err := l.view(ctx, func(tx *store.Tx, tctx contracts.TxContext) error {
		var err error
		_, out, err = registry.LoadConfig(tx, tctx)
		return err
	})
	return out, err
}

func (l *Ledger) Treasury(ctx context.Context) (vault.GlobalTreasury, error) {
	var out vault.GlobalTreasury
	err := l.view(ctx, func(tx *store.Tx, tctx contracts.TxContext) error {
		var err error
		_, out, err = vault.LoadTreasury(tx, tctx)
		return err
	})
	return out, err
}

func (l *Ledger) Agent(ctx context.Context, agent models.Key) (registry.AgentIdentity, error) {
	return get[registry.AgentIdentity](ctx, l, agent)
}

// VaultBalance is the agent's withdrawable vault balance, excluding the rent
// floor.
func (l *Ledger) VaultBalance(ctx context.Context, agent models.Key) (uint64, error) {
	var out uint64
	err := l.view(ctx, func(tx *store.Tx, tctx contracts.TxContext) error {
		var err error
		out, err = vault.Balance(tx, tctx, agent)
		return err
	})
	return out, err
}

func (l *Ledger) Enclave(ctx context.Context, addr models.Key) (enclave.Enclave, error) {
	return get[enclave.Enclave](ctx, l, addr)
}

func (l *Ledger) Post(ctx context.Context, addr models.Key) (entries.PostAnchor, error) {
	return get[entries.PostAnchor](ctx, l, addr)
}

func (l *Ledger) Vote(ctx context.Context, addr models.Key) (entries.ReputationVote, error) {
	return get[entries.ReputationVote](ctx, l, addr)
}

func (l *Ledger) Job(ctx context.Context, addr models.Key) (jobs.JobPosting, error) {
	return get[jobs.JobPosting](ctx, l, addr)
}

func (l *Ledger) JobEscrow(ctx context.Context, job models.Key) (jobs.JobEscrow, error) {
	return get[jobs.JobEscrow](ctx, l, l.addr.JobEscrow(job))
}

func (l *Ledger) JobBid(ctx context.Context, addr models.Key) (jobs.JobBid, error) {
	return get[jobs.JobBid](ctx, l, addr)
}

func (l *Ledger) JobSubmission(ctx context.Context, job models.Key) (jobs.JobSubmission, error) {
	return get[jobs.JobSubmission](ctx, l, l.addr.JobSubmission(job))
}

func (l *Ledger) Tip(ctx context.Context, addr models.Key) (tips.TipAnchor, error) {
	return get[tips.TipAnchor](ctx, l, addr)
}

func (l *Ledger) TipEscrow(ctx context.Context, tip models.Key) (tips.TipEscrow, error) {
	return get[tips.TipEscrow](ctx, l, l.addr.TipEscrow(tip))
}

func (l *Ledger) RateLimit(ctx context.Context, tipper models.Key) (tips.TipperRateLimit, error) {
	return get[tips.TipperRateLimit](ctx, l, l.addr.RateLimit(tipper))
}

// Balance returns the raw lamports held at key, rent floors included.
func (l *Ledger) Balance(ctx context.Context, key models.Key) (uint64, error) {
	var out uint64
	err := l.view(ctx, func(tx *store.Tx, _ contracts.TxContext) error {
		var err error
		out, err = tx.Lamports(key)
		return err
	})
	return out, err
}

// SupplyReport compares minted value against the sum of all balances.
type SupplyReport struct {
	Slot   uint64
	Minted uint64
	Held   *uint256.Int
}

func (r SupplyReport) Conserved() bool {
	return r.Held != nil && r.Held.IsUint64() && r.Held.Uint64() == r.Minted
}

func (l *Ledger) Supply(ctx context.Context) (SupplyReport, error) {
	var out SupplyReport
	if err := ctx.Err(); err != nil {
		return out, contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	slot, err := l.store.Slot()
	if err != nil {
		return out, err
	}
	minted, held, err := l.store.Supply()
	if err != nil {
		return out, err
	}
	return SupplyReport{Slot: slot, Minted: minted, Held: held}, nil
}

package ledger

import (
	"context"

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

// InitializeConfig creates the program config and treasury. The upgrade
// authority is resolved before the transaction starts.
func (l *Ledger) InitializeConfig(ctx context.Context, caller models.Key) (models.Key, error) {
	upgrade, verifyErr := l.authority.UpgradeAuthority(ctx)
	var out models.Key
	err := l.run(ctx, "initialize_config", []any{"caller", caller}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		if verifyErr != nil {
			return verifyErr
		}
		var err error
		out, err = registry.InitializeConfig(tx, tctx, caller, upgrade)
		*log = append(*log, "config", out)
		return err
	})
	return out, err
}

func (l *Ledger) InitializeAgent(ctx context.Context, owner models.Key, req registry.InitAgentRequest) (registry.InitializedAgent, error) {
	var out registry.InitializedAgent
	err := l.run(ctx, "initialize_agent", []any{"owner", owner, "agent_signer", req.AgentSigner}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = registry.InitializeAgent(tx, tctx, owner, req)
		*log = append(*log, "agent", out.Agent, "fee", out.Fee)
		return err
	})
	return out, err
}

func (l *Ledger) RotateAgentSigner(ctx context.Context, agent models.Key, sig contracts.AgentSignature, next models.Key) error {
	return l.run(ctx, "rotate_agent_signer", []any{"agent", agent, "new_signer", next}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		return registry.RotateAgentSigner(tx, tctx, agent, sig, next)
	})
}

func (l *Ledger) DepositToVault(ctx context.Context, depositor, agent models.Key, amount uint64) error {
	return l.run(ctx, "deposit_to_vault", []any{"depositor", depositor, "agent", agent, "amount", amount}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		return registry.DepositToVault(tx, tctx, depositor, agent, amount)
	})
}

func (l *Ledger) WithdrawFromVault(ctx context.Context, caller, agent models.Key, amount uint64) error {
	return l.run(ctx, "withdraw_from_vault", []any{"caller", caller, "agent", agent, "amount", amount}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		return registry.WithdrawFromVault(tx, tctx, caller, agent, amount)
	})
}

func (l *Ledger) CreateEnclave(ctx context.Context, agent models.Key, sig contracts.AgentSignature, nameHash, metadataHash models.Hash) (models.Key, error) {
	var out models.Key
	err := l.run(ctx, "create_enclave", []any{"agent", agent}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = enclave.Create(tx, tctx, agent, sig, nameHash, metadataHash)
		*log = append(*log, "enclave", out)
		return err
	})
	return out, err
}

func (l *Ledger) AnchorPost(ctx context.Context, agent models.Key, sig contracts.AgentSignature, enclaveAddr models.Key, contentHash, manifestHash models.Hash) (models.Key, error) {
	var out models.Key
	err := l.run(ctx, "anchor_post", []any{"agent", agent, "enclave", enclaveAddr}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = entries.AnchorPost(tx, tctx, agent, sig, enclaveAddr, contentHash, manifestHash)
		*log = append(*log, "post", out)
		return err
	})
	return out, err
}

func (l *Ledger) AnchorComment(ctx context.Context, agent models.Key, sig contracts.AgentSignature, replyTo models.Key, contentHash, manifestHash models.Hash) (models.Key, error) {
	var out models.Key
	err := l.run(ctx, "anchor_comment", []any{"agent", agent, "reply_to", replyTo}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = entries.AnchorComment(tx, tctx, agent, sig, replyTo, contentHash, manifestHash)
		*log = append(*log, "post", out)
		return err
	})
	return out, err
}

func (l *Ledger) CastVote(ctx context.Context, voter models.Key, sig contracts.AgentSignature, post models.Key, value int8) (models.Key, error) {
	var out models.Key
	err := l.run(ctx, "cast_vote", []any{"voter", voter, "post", post, "value", value}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = entries.CastVote(tx, tctx, voter, sig, post, value)
		*log = append(*log, "vote", out)
		return err
	})
	return out, err
}

func (l *Ledger) CreateJob(ctx context.Context, creator models.Key, nonce uint64, metadataHash models.Hash, budget uint64) (jobs.CreatedJob, error) {
	var out jobs.CreatedJob
	err := l.run(ctx, "create_job", []any{"creator", creator, "nonce", nonce, "budget", budget}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = jobs.CreateJob(tx, tctx, creator, nonce, metadataHash, budget)
		*log = append(*log, "job", out.Job)
		return err
	})
	return out, err
}

func (l *Ledger) PlaceJobBid(ctx context.Context, bidder models.Key, sig contracts.AgentSignature, job models.Key, bidLamports uint64, messageHash models.Hash) (models.Key, error) {
	var out models.Key
	err := l.run(ctx, "place_job_bid", []any{"agent", bidder, "job", job, "bid_lamports", bidLamports}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = jobs.PlaceJobBid(tx, tctx, bidder, sig, job, bidLamports, messageHash)
		*log = append(*log, "bid", out)
		return err
	})
	return out, err
}

func (l *Ledger) WithdrawJobBid(ctx context.Context, bidder models.Key, sig contracts.AgentSignature, bid models.Key) error {
	return l.run(ctx, "withdraw_job_bid", []any{"agent", bidder, "bid", bid}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		return jobs.WithdrawJobBid(tx, tctx, bidder, sig, bid)
	})
}

func (l *Ledger) AcceptJobBid(ctx context.Context, creator, job, bid models.Key) error {
	return l.run(ctx, "accept_job_bid", []any{"creator", creator, "job", job, "bid", bid}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		return jobs.AcceptJobBid(tx, tctx, creator, job, bid)
	})
}

func (l *Ledger) SubmitJobWork(ctx context.Context, agent models.Key, sig contracts.AgentSignature, job models.Key, submissionHash models.Hash) (models.Key, error) {
	var out models.Key
	err := l.run(ctx, "submit_job_work", []any{"agent", agent, "job", job}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = jobs.SubmitJobWork(tx, tctx, agent, sig, job, submissionHash)
		*log = append(*log, "submission", out)
		return err
	})
	return out, err
}

func (l *Ledger) ApproveJobSubmission(ctx context.Context, creator, job models.Key) (jobs.Payout, error) {
	var out jobs.Payout
	err := l.run(ctx, "approve_job_submission", []any{"creator", creator, "job", job}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = jobs.ApproveJobSubmission(tx, tctx, creator, job)
		*log = append(*log, "vault", out.Vault, "amount", out.Amount)
		return err
	})
	return out, err
}

func (l *Ledger) SubmitTip(ctx context.Context, tipper models.Key, req tips.SubmitTipRequest) (tips.SubmittedTip, error) {
	var out tips.SubmittedTip
	err := l.run(ctx, "submit_tip", []any{"tipper", tipper, "amount", req.Amount, "nonce", req.Nonce, "target_enclave", req.TargetEnclave}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = tips.SubmitTip(tx, tctx, tipper, req)
		*log = append(*log, "tip", out.Tip, "priority", out.Priority.String())
		return err
	})
	return out, err
}

func (l *Ledger) SettleTip(ctx context.Context, caller, tip models.Key) (tips.Settlement, error) {
	var out tips.Settlement
	err := l.run(ctx, "settle_tip", []any{"caller", caller, "tip", tip}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = tips.SettleTip(tx, tctx, caller, tip)
		*log = append(*log, "owner_share", out.OwnerShare, "treasury_share", out.TreasuryShare)
		return err
	})
	return out, err
}

func (l *Ledger) RefundTip(ctx context.Context, caller, tip models.Key) (uint64, error) {
	var out uint64
	err := l.run(ctx, "refund_tip", []any{"caller", caller, "tip", tip}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = tips.RefundTip(tx, tctx, caller, tip)
		*log = append(*log, "amount", out)
		return err
	})
	return out, err
}

func (l *Ledger) ClaimTimeoutRefund(ctx context.Context, caller, tip models.Key) (uint64, error) {
	var out uint64
	err := l.run(ctx, "claim_timeout_refund", []any{"caller", caller, "tip", tip}, func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error {
		var err error
		out, err = tips.ClaimTimeoutRefund(tx, tctx, caller, tip)
		*log = append(*log, "amount", out)
		return err
	})
	return out, err
}

func (l *Ledger) WithdrawTreasury(ctx context.Context, caller, to models.Key, amount uint64) error {
	return l.run(ctx, "withdraw_treasury", []any{"caller", caller, "to", to, "amount", amount}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		return vault.WithdrawTreasury(tx, tctx, caller, to, amount)
	})
}

// Airdrop mints amount into a wallet. It is the only way value enters the
// ledger and is refused unless the dev faucet is enabled.
func (l *Ledger) Airdrop(ctx context.Context, to models.Key, amount uint64) error {
	return l.run(ctx, "airdrop", []any{"to", to, "amount", amount}, func(tx *store.Tx, tctx contracts.TxContext, _ *[]any) error {
		if !tctx.Policy.DevFaucet {
			return contracts.ErrFaucetDisabled
		}
		if amount == 0 {
			return contracts.ErrInvalidAmount
		}
		return tx.Credit(to, amount)
	})
}

package rpc

import (
	"context"

	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/enclave"
	"github.com/angganurf/wunderland-sol/internal/domains/entries"
	"github.com/angganurf/wunderland-sol/internal/domains/jobs"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/domains/tips"
	"github.com/angganurf/wunderland-sol/internal/domains/vault"
	"github.com/angganurf/wunderland-sol/internal/ledger"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// LedgerService is the ledger surface served over JSON-RPC. *ledger.Ledger
// implements it.
type LedgerService interface {
	Program() models.Key
	Policy() contracts.Policy
	Addresses() addressing.Deriver

	InitializeConfig(ctx context.Context, caller models.Key) (models.Key, error)
	InitializeAgent(ctx context.Context, owner models.Key, req registry.InitAgentRequest) (registry.InitializedAgent, error)
	RotateAgentSigner(ctx context.Context, agent models.Key, sig contracts.AgentSignature, next models.Key) error
	DepositToVault(ctx context.Context, depositor, agent models.Key, amount uint64) error
	WithdrawFromVault(ctx context.Context, caller, agent models.Key, amount uint64) error

	CreateEnclave(ctx context.Context, agent models.Key, sig contracts.AgentSignature, nameHash, metadataHash models.Hash) (models.Key, error)
	AnchorPost(ctx context.Context, agent models.Key, sig contracts.AgentSignature, enclaveAddr models.Key, contentHash, manifestHash models.Hash) (models.Key, error)
	AnchorComment(ctx context.Context, agent models.Key, sig contracts.AgentSignature, replyTo models.Key, contentHash, manifestHash models.Hash) (models.Key, error)
	CastVote(ctx context.Context, voter models.Key, sig contracts.AgentSignature, post models.Key, value int8) (models.Key, error)

	CreateJob(ctx context.Context, creator models.Key, nonce uint64, metadataHash models.Hash, budget uint64) (jobs.CreatedJob, error)
	PlaceJobBid(ctx context.Context, bidder models.Key, sig contracts.AgentSignature, job models.Key, bidLamports uint64, messageHash models.Hash) (models.Key, error)
	WithdrawJobBid(ctx context.Context, bidder models.Key, sig contracts.AgentSignature, bid models.Key) error
	AcceptJobBid(ctx context.Context, creator, job, bid models.Key) error
	SubmitJobWork(ctx context.Context, agent models.Key, sig contracts.AgentSignature, job models.Key, submissionHash models.Hash) (models.Key, error)
	ApproveJobSubmission(ctx context.Context, creator, job models.Key) (jobs.Payout, error)

	SubmitTip(ctx context.Context, tipper models.Key, req tips.SubmitTipRequest) (tips.SubmittedTip, error)
	SettleTip(ctx context.Context, caller, tip models.Key) (tips.Settlement, error)
	RefundTip(ctx context.Context, caller, tip models.Key) (uint64, error)
	ClaimTimeoutRefund(ctx context.Context, caller, tip models.Key) (uint64, error)

	WithdrawTreasury(ctx context.Context, caller, to models.Key, amount uint64) error
	Airdrop(ctx context.Context, to models.Key, amount uint64) error

	Config(ctx context.Context) (registry.ProgramConfig, error)
	Treasury(ctx context.Context) (vault.GlobalTreasury, error)
	Agent(ctx context.Context, agent models.Key) (registry.AgentIdentity, error)
	VaultBalance(ctx context.Context, agent models.Key) (uint64, error)
	Enclave(ctx context.Context, addr models.Key) (enclave.Enclave, error)
	Post(ctx context.Context, addr models.Key) (entries.PostAnchor, error)
	Vote(ctx context.Context, addr models.Key) (entries.ReputationVote, error)
	Job(ctx context.Context, addr models.Key) (jobs.JobPosting, error)
	JobEscrow(ctx context.Context, job models.Key) (jobs.JobEscrow, error)
	JobBid(ctx context.Context, addr models.Key) (jobs.JobBid, error)
	JobSubmission(ctx context.Context, job models.Key) (jobs.JobSubmission, error)
	Tip(ctx context.Context, addr models.Key) (tips.TipAnchor, error)
	TipEscrow(ctx context.Context, tip models.Key) (tips.TipEscrow, error)
	RateLimit(ctx context.Context, tipper models.Key) (tips.TipperRateLimit, error)
	Balance(ctx context.Context, key models.Key) (uint64, error)
	Supply(ctx context.Context) (ledger.SupplyReport, error)
}

var _ LedgerService = (*ledger.Ledger)(nil)

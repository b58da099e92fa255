package jobs

import (
	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/domains/vault"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

type CreatedJob struct {
	Job    models.Key `json:"job"`
	Escrow models.Key `json:"escrow"`
}

// CreateJob opens a job and moves its full budget from creator into a new
// escrow. creator also funds the escrow rent floor.
func CreateJob(tx *store.Tx, tctx contracts.TxContext, creator models.Key, nonce uint64, metadataHash models.Hash, budget uint64) (CreatedJob, error) {
	var out CreatedJob
	if budget == 0 || metadataHash.IsZero() {
		return out, contracts.ErrInvalidAmount
	}
	d := addressing.New(tctx.Program)
	out.Job = d.Job(creator, nonce)
	out.Escrow = d.JobEscrow(out.Job)

	job := JobPosting{
		Creator:        creator,
		JobNonce:       nonce,
		MetadataHash:   metadataHash,
		BudgetLamports: budget,
		Status:         JobOpen,
		CreatedAt:      tctx.Now,
		UpdatedAt:      tctx.Now,
		Bump:           addressing.CanonicalBump,
	}
	if err := store.Create(tx, out.Job, job); err != nil {
		return out, err
	}
	escrow := JobEscrow{Job: out.Job, Amount: budget, Bump: addressing.CanonicalBump}
	if err := store.Create(tx, out.Escrow, escrow); err != nil {
		return out, err
	}
	if err := vault.FundRent(tx, tctx, creator, out.Escrow, JobEscrowLen); err != nil {
		return out, err
	}
	if err := tx.Transfer(creator, out.Escrow, budget); err != nil {
		return out, err
	}
	return out, nil
}

func LoadJob(tx *store.Tx, job models.Key) (JobPosting, error) {
	return store.Get[JobPosting](tx, job)
}

func setJobStatus(job *JobPosting, to JobStatus, now int64) error {
	if err := ValidateJobTransition(job.Status, to); err != nil {
		return err
	}
	job.Status = to
	job.UpdatedAt = now
	return nil
}

func setBidStatus(bid *JobBid, to BidStatus) error {
	if err := ValidateBidTransition(bid.Status, to); err != nil {
		return err
	}
	bid.Status = to
	return nil
}

// PlaceJobBid records an agent's offer on an open job. Each agent has at
// most one bid per job.
func PlaceJobBid(tx *store.Tx, tctx contracts.TxContext, bidder models.Key, sig contracts.AgentSignature, jobAddr models.Key, bidLamports uint64, messageHash models.Hash) (models.Key, error) {
	if _, err := registry.Authorize(tx, tctx, bidder, sig, contracts.ActionPlaceJobBid, BidPayload(jobAddr, bidLamports, messageHash)); err != nil {
		return models.Key{}, err
	}
	job, err := LoadJob(tx, jobAddr)
	if err != nil {
		return models.Key{}, err
	}
	if job.Status != JobOpen {
		return models.Key{}, contracts.ErrJobNotOpen
	}
	if bidLamports == 0 || bidLamports > job.BudgetLamports {
		return models.Key{}, contracts.ErrInvalidAmount
	}
	addr := addressing.New(tctx.Program).JobBid(jobAddr, bidder)
	bid := JobBid{
		Job:         jobAddr,
		BidderAgent: bidder,
		BidLamports: bidLamports,
		MessageHash: messageHash,
		Status:      BidActive,
		CreatedAt:   tctx.Now,
		Bump:        addressing.CanonicalBump,
	}
	if err := store.Create(tx, addr, bid); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

// WithdrawJobBid retracts an active bid. Only the bidding agent can do it.
func WithdrawJobBid(tx *store.Tx, tctx contracts.TxContext, bidder models.Key, sig contracts.AgentSignature, bidAddr models.Key) error {
	if _, err := registry.Authorize(tx, tctx, bidder, sig, contracts.ActionWithdrawJobBid, WithdrawBidPayload(bidAddr)); err != nil {
		return err
	}
	bid, err := store.Get[JobBid](tx, bidAddr)
	if err != nil {
		return err
	}
	if bid.BidderAgent != bidder {
		return contracts.ErrUnauthorizedJobAgent
	}
	if bid.Status != BidActive {
		return contracts.ErrBidNotActive
	}
	if err := setBidStatus(&bid, BidWithdrawn); err != nil {
		return err
	}
	return store.Put(tx, bidAddr, bid)
}

// AcceptJobBid assigns the job to the bidder. Once assigned the job is no
// longer open, so no second bid can be accepted.
func AcceptJobBid(tx *store.Tx, tctx contracts.TxContext, creator, jobAddr, bidAddr models.Key) error {
	job, err := LoadJob(tx, jobAddr)
	if err != nil {
		return err
	}
	if job.Creator != creator {
		return contracts.ErrUnauthorizedJobCreator
	}
	if job.Status != JobOpen {
		return contracts.ErrJobNotOpen
	}
	bid, ok, err := store.Lookup[JobBid](tx, bidAddr)
	if err != nil {
		return err
	}
	if !ok || bid.Job != jobAddr {
		return contracts.ErrInvalidJobBid
	}
	if bid.Status != BidActive {
		return contracts.ErrBidNotActive
	}
	if err := setJobStatus(&job, JobAssigned, tctx.Now); err != nil {
		return err
	}
	if err := setBidStatus(&bid, BidAccepted); err != nil {
		return err
	}
	job.AssignedAgent = bid.BidderAgent
	job.AcceptedBid = bidAddr
	if err := store.Put(tx, bidAddr, bid); err != nil {
		return err
	}
	return store.Put(tx, jobAddr, job)
}

// SubmitJobWork records the assigned agent's deliverable and moves the job
// to submitted.
func SubmitJobWork(tx *store.Tx, tctx contracts.TxContext, agent models.Key, sig contracts.AgentSignature, jobAddr models.Key, submissionHash models.Hash) (models.Key, error) {
	if _, err := registry.Authorize(tx, tctx, agent, sig, contracts.ActionSubmitJobWork, SubmitPayload(jobAddr, submissionHash)); err != nil {
		return models.Key{}, err
	}
	if submissionHash.IsZero() {
		return models.Key{}, contracts.ErrInvalidSubmissionHash
	}
	job, err := LoadJob(tx, jobAddr)
	if err != nil {
		return models.Key{}, err
	}
	if job.Status != JobAssigned {
		return models.Key{}, contracts.ErrJobNotAssigned
	}
	if job.AssignedAgent != agent {
		return models.Key{}, contracts.ErrUnauthorizedJobAgent
	}
	addr := addressing.New(tctx.Program).JobSubmission(jobAddr)
	sub := JobSubmission{
		Job:            jobAddr,
		Agent:          agent,
		SubmissionHash: submissionHash,
		CreatedAt:      tctx.Now,
		Bump:           addressing.CanonicalBump,
	}
	if err := store.Create(tx, addr, sub); err != nil {
		return models.Key{}, err
	}
	if err := setJobStatus(&job, JobSubmitted, tctx.Now); err != nil {
		return models.Key{}, err
	}
	if err := store.Put(tx, jobAddr, job); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

type Payout struct {
	Vault  models.Key `json:"vault"`
	Amount uint64     `json:"amount"`
}

// ApproveJobSubmission releases the escrow into the assigned agent's vault
// and completes the job. This is the only path that moves a job budget.
func ApproveJobSubmission(tx *store.Tx, tctx contracts.TxContext, creator, jobAddr models.Key) (Payout, error) {
	var out Payout
	job, err := LoadJob(tx, jobAddr)
	if err != nil {
		return out, err
	}
	if job.Creator != creator {
		return out, contracts.ErrUnauthorizedJobCreator
	}
	if job.Status != JobSubmitted {
		return out, contracts.ErrJobNotSubmitted
	}
	d := addressing.New(tctx.Program)
	escrowAddr := d.JobEscrow(jobAddr)
	escrow, ok, err := store.Lookup[JobEscrow](tx, escrowAddr)
	if err != nil {
		return out, err
	}
	if !ok || escrow.Job != jobAddr {
		return out, contracts.ErrInvalidJobEscrow
	}
	sub, ok, err := store.Lookup[JobSubmission](tx, d.JobSubmission(jobAddr))
	if err != nil {
		return out, err
	}
	if !ok || sub.Job != jobAddr {
		return out, contracts.ErrJobNotSubmitted
	}
	if sub.Agent != job.AssignedAgent {
		return out, contracts.ErrUnauthorizedJobAgent
	}
	out.Amount = escrow.Amount
	if out.Amount == 0 {
		return out, contracts.ErrInvalidAmount
	}
	held, err := tx.Lamports(escrowAddr)
	if err != nil {
		return out, err
	}
	required, ok := models.CheckedAdd(tctx.Policy.RentFloor(JobEscrowLen), out.Amount)
	if !ok || held < required {
		return out, contracts.ErrInsufficientJobEscrowBalance
	}
	if out.Vault, err = vault.Payout(tx, tctx, escrowAddr, sub.Agent, out.Amount); err != nil {
		return out, err
	}
	escrow.Amount = 0
	if err := store.Put(tx, escrowAddr, escrow); err != nil {
		return out, err
	}
	if err := setJobStatus(&job, JobCompleted, tctx.Now); err != nil {
		return out, err
	}
	if err := store.Put(tx, jobAddr, job); err != nil {
		return out, err
	}
	return out, nil
}

package jobs

import (
	"errors"
	"testing"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/vault"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/internal/testutil/ledgerfix"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const budget = 2 * models.LamportsPerUnit

type market struct {
	f       *ledgerfix.Fixture
	creator models.Key
	worker  ledgerfix.Agent
	rival   ledgerfix.Agent
	job     CreatedJob
}

func newMarket(t *testing.T) *market {
	t.Helper()
	f := ledgerfix.New(t)
	m := &market{f: f, creator: f.Wallet(0xC0), worker: f.Agent(1), rival: f.Agent(2)}
	f.MustUpdate(func(tx *store.Tx) error {
		var err error
		m.job, err = CreateJob(tx, f.Ctx, m.creator, 7, models.Hash{0x11}, budget)
		return err
	})
	return m
}

func (m *market) bid(a ledgerfix.Agent, amount uint64) (models.Key, error) {
	msg := models.Hash{0x22}
	sig := m.f.Sign(a, contracts.ActionPlaceJobBid, BidPayload(m.job.Job, amount, msg))
	var addr models.Key
	err := m.f.Update(func(tx *store.Tx) error {
		var err error
		addr, err = PlaceJobBid(tx, m.f.Ctx, a.Key, sig, m.job.Job, amount, msg)
		return err
	})
	return addr, err
}

func (m *market) accept(caller, bid models.Key) error {
	return m.f.Update(func(tx *store.Tx) error { return AcceptJobBid(tx, m.f.Ctx, caller, m.job.Job, bid) })
}

func (m *market) submit(a ledgerfix.Agent) error {
	h := models.Hash{0x33}
	sig := m.f.Sign(a, contracts.ActionSubmitJobWork, SubmitPayload(m.job.Job, h))
	return m.f.Update(func(tx *store.Tx) error {
		_, err := SubmitJobWork(tx, m.f.Ctx, a.Key, sig, m.job.Job, h)
		return err
	})
}

func (m *market) approve(caller models.Key) (Payout, error) {
	var out Payout
	err := m.f.Update(func(tx *store.Tx) error {
		var err error
		out, err = ApproveJobSubmission(tx, m.f.Ctx, caller, m.job.Job)
		return err
	})
	return out, err
}

func (m *market) state() (JobPosting, JobEscrow) {
	var job JobPosting
	var escrow JobEscrow
	m.f.View(func(tx *store.Tx) error {
		var err error
		if job, err = LoadJob(tx, m.job.Job); err != nil {
			return err
		}
		escrow, err = store.Get[JobEscrow](tx, m.job.Escrow)
		return err
	})
	return job, escrow
}

// assertEscrowMatchesStatus checks that escrow is zero exactly when the job
// is completed.
func (m *market) assertEscrowMatchesStatus(t *testing.T) {
	t.Helper()
	job, escrow := m.state()
	if (escrow.Amount == 0) != (job.Status == JobCompleted) {
		t.Fatalf("escrow=%d with status=%s", escrow.Amount, job.Status)
	}
	if job.Status != JobCompleted && escrow.Amount != job.BudgetLamports {
		t.Fatalf("escrow=%d want budget %d before completion", escrow.Amount, job.BudgetLamports)
	}
	m.f.AssertConserved()
}

func TestCreateJob_EscrowsBudgetAndRent(t *testing.T) {
	m := newMarket(t)
	job, escrow := m.state()
	if job.Status != JobOpen || job.BudgetLamports != budget || escrow.Amount != budget || escrow.Job != m.job.Job {
		t.Fatalf("unexpected job/escrow: %+v %+v", job, escrow)
	}
	floor := m.f.Ctx.Policy.RentFloor(JobEscrowLen)
	if got := m.f.Lamports(m.job.Escrow); got != floor+budget {
		t.Fatalf("escrow lamports: got=%d want=%d", got, floor+budget)
	}
	if got := m.f.Lamports(m.creator); got != ledgerfix.StartingFunds-floor-budget {
		t.Fatalf("creator lamports: got=%d", got)
	}
	m.assertEscrowMatchesStatus(t)
}

func TestCreateJob_Validation(t *testing.T) {
	m := newMarket(t)
	cases := []struct {
		name   string
		nonce  uint64
		meta   models.Hash
		budget uint64
		want   error
	}{
		{"zero budget", 1, models.Hash{1}, 0, contracts.ErrInvalidAmount},
		{"zero metadata", 1, models.Hash{}, 1, contracts.ErrInvalidAmount},
		{"duplicate nonce", 7, models.Hash{1}, 1, contracts.ErrAccountAlreadyInUse},
		{"unfunded", 2, models.Hash{1}, 1_000 * models.LamportsPerUnit, contracts.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.f.Update(func(tx *store.Tx) error {
				_, err := CreateJob(tx, m.f.Ctx, m.creator, tc.nonce, tc.meta, tc.budget)
				return err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("got=%v want=%v", err, tc.want)
			}
		})
	}
}

func TestJobLifecycle_PaysOnceOnApproval(t *testing.T) {
	m := newMarket(t)
	bid, err := m.bid(m.worker, budget)
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	rivalBid, err := m.bid(m.rival, budget/2)
	if err != nil {
		t.Fatalf("rival bid failed: %v", err)
	}
	m.assertEscrowMatchesStatus(t)

	if err := m.accept(m.worker.Owner, bid); !errors.Is(err, contracts.ErrUnauthorizedJobCreator) {
		t.Fatalf("expected ErrUnauthorizedJobCreator, got %v", err)
	}
	if err := m.accept(m.creator, bid); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := m.accept(m.creator, rivalBid); !errors.Is(err, contracts.ErrJobNotOpen) {
		t.Fatalf("expected ErrJobNotOpen for second accept, got %v", err)
	}
	job, _ := m.state()
	if job.Status != JobAssigned || job.AssignedAgent != m.worker.Key || job.AcceptedBid != bid {
		t.Fatalf("unexpected assignment: %+v", job)
	}
	m.assertEscrowMatchesStatus(t)

	if _, err := m.approve(m.creator); !errors.Is(err, contracts.ErrJobNotSubmitted) {
		t.Fatalf("expected ErrJobNotSubmitted before submission, got %v", err)
	}
	if err := m.submit(m.rival); !errors.Is(err, contracts.ErrUnauthorizedJobAgent) {
		t.Fatalf("expected ErrUnauthorizedJobAgent, got %v", err)
	}
	if err := m.submit(m.worker); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := m.submit(m.worker); !errors.Is(err, contracts.ErrJobNotAssigned) {
		t.Fatalf("expected ErrJobNotAssigned on resubmit, got %v", err)
	}
	m.assertEscrowMatchesStatus(t)

	if _, err := m.approve(m.worker.Owner); !errors.Is(err, contracts.ErrUnauthorizedJobCreator) {
		t.Fatalf("expected ErrUnauthorizedJobCreator, got %v", err)
	}
	payout, err := m.approve(m.creator)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if payout.Amount != budget || payout.Vault != m.worker.Vault {
		t.Fatalf("unexpected payout: %+v", payout)
	}
	m.assertEscrowMatchesStatus(t)
	if _, err := m.approve(m.creator); !errors.Is(err, contracts.ErrJobNotSubmitted) {
		t.Fatalf("expected ErrJobNotSubmitted on second approval, got %v", err)
	}

	m.f.View(func(tx *store.Tx) error {
		bal, err := vault.Balance(tx, m.f.Ctx, m.worker.Key)
		if err != nil {
			return err
		}
		if bal != budget {
			t.Fatalf("worker vault: got=%d want=%d", bal, budget)
		}
		return nil
	})
	if got := m.f.Lamports(m.job.Escrow); got != m.f.Ctx.Policy.RentFloor(JobEscrowLen) {
		t.Fatalf("escrow must keep exactly its rent floor, got %d", got)
	}
}

func TestPlaceJobBid_Rules(t *testing.T) {
	m := newMarket(t)
	if _, err := m.bid(m.worker, 0); !errors.Is(err, contracts.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero bid, got %v", err)
	}
	if _, err := m.bid(m.worker, budget+1); !errors.Is(err, contracts.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount above budget, got %v", err)
	}
	if _, err := m.bid(m.worker, budget); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := m.bid(m.worker, budget); !errors.Is(err, contracts.ErrAccountAlreadyInUse) {
		t.Fatalf("expected ErrAccountAlreadyInUse, got %v", err)
	}
}

func TestWithdrawJobBid(t *testing.T) {
	m := newMarket(t)
	bid, err := m.bid(m.worker, budget)
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	withdraw := func(a ledgerfix.Agent) error {
		sig := m.f.Sign(a, contracts.ActionWithdrawJobBid, WithdrawBidPayload(bid))
		return m.f.Update(func(tx *store.Tx) error { return WithdrawJobBid(tx, m.f.Ctx, a.Key, sig, bid) })
	}
	if err := withdraw(m.rival); !errors.Is(err, contracts.ErrUnauthorizedJobAgent) {
		t.Fatalf("expected ErrUnauthorizedJobAgent, got %v", err)
	}
	if err := withdraw(m.worker); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if err := withdraw(m.worker); !errors.Is(err, contracts.ErrBidNotActive) {
		t.Fatalf("expected ErrBidNotActive, got %v", err)
	}
	if err := m.accept(m.creator, bid); !errors.Is(err, contracts.ErrBidNotActive) {
		t.Fatalf("expected ErrBidNotActive on accept, got %v", err)
	}
}

func TestAcceptJobBid_ForeignBid(t *testing.T) {
	m := newMarket(t)
	var other CreatedJob
	m.f.MustUpdate(func(tx *store.Tx) error {
		var err error
		other, err = CreateJob(tx, m.f.Ctx, m.creator, 8, models.Hash{0x12}, budget)
		return err
	})
	msg := models.Hash{0x22}
	sig := m.f.Sign(m.worker, contracts.ActionPlaceJobBid, BidPayload(other.Job, budget, msg))
	var foreign models.Key
	m.f.MustUpdate(func(tx *store.Tx) error {
		var err error
		foreign, err = PlaceJobBid(tx, m.f.Ctx, m.worker.Key, sig, other.Job, budget, msg)
		return err
	})
	if err := m.accept(m.creator, foreign); !errors.Is(err, contracts.ErrInvalidJobBid) {
		t.Fatalf("expected ErrInvalidJobBid, got %v", err)
	}
	if err := m.accept(m.creator, models.Key{0x99}); !errors.Is(err, contracts.ErrInvalidJobBid) {
		t.Fatalf("expected ErrInvalidJobBid for missing bid, got %v", err)
	}
}

func TestApprove_InsufficientEscrowBalance(t *testing.T) {
	m := newMarket(t)
	bid, err := m.bid(m.worker, budget)
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if err := m.accept(m.creator, bid); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := m.submit(m.worker); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// Drain one lamport so the escrow can no longer cover floor + amount.
	m.f.MustUpdate(func(tx *store.Tx) error { return tx.Transfer(m.job.Escrow, m.creator, 1) })
	if _, err := m.approve(m.creator); !errors.Is(err, contracts.ErrInsufficientJobEscrowBalance) {
		t.Fatalf("expected ErrInsufficientJobEscrowBalance, got %v", err)
	}
	job, escrow := m.state()
	if job.Status != JobSubmitted || escrow.Amount != budget {
		t.Fatalf("state changed after failed approval: %+v %+v", job, escrow)
	}
}

func TestTransitionTables(t *testing.T) {
	for from := JobOpen; from <= JobCompleted; from++ {
		for to := JobOpen; to <= JobCompleted; to++ {
			err := ValidateJobTransition(from, to)
			if allowed := to == from+1; allowed != (err == nil) {
				t.Fatalf("job %s -> %s: err=%v", from, to, err)
			}
		}
	}
	for from := BidActive; from <= BidWithdrawn; from++ {
		for to := BidActive; to <= BidWithdrawn; to++ {
			err := ValidateBidTransition(from, to)
			allowed := from == BidActive && to != BidActive
			if allowed != (err == nil) {
				t.Fatalf("bid %s -> %s: err=%v", from, to, err)
			}
		}
	}
}

package vault

import (
	"errors"
	"testing"

	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

var (
	program   = models.Key{0xAA}
	authority = models.Key{0x01}
	owner     = models.Key{0x02}
	agent     = models.Key{0x03}
)

func testContext() contracts.TxContext {
	return contracts.TxContext{Program: program, Now: 1_700_000_000, Policy: contracts.DefaultPolicy()}
}

func newFundedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(nil)
	err := s.Update(func(tx *store.Tx) error {
		if err := tx.Credit(authority, 10*models.LamportsPerUnit); err != nil {
			return err
		}
		return tx.Credit(owner, 10*models.LamportsPerUnit)
	})
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	return s
}

func TestOpen_FundsRentFloor(t *testing.T) {
	s := newFundedStore(t)
	tctx := testContext()
	var addr models.Key
	err := s.Update(func(tx *store.Tx) error {
		var err error
		addr, err = Open(tx, tctx, owner, agent)
		return err
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if addr != addressing.New(program).Vault(agent) {
		t.Fatalf("unexpected vault address %s", addr)
	}
	_ = s.View(func(tx *store.Tx) error {
		held, _ := tx.Lamports(addr)
		if want := tctx.Policy.RentFloor(AgentVaultLen); held != want {
			t.Fatalf("vault lamports: got=%d want=%d", held, want)
		}
		bal, err := Balance(tx, tctx, agent)
		if err != nil || bal != 0 {
			t.Fatalf("balance: got=%d err=%v want=0", bal, err)
		}
		return nil
	})
}

func TestDepositWithdraw(t *testing.T) {
	s := newFundedStore(t)
	tctx := testContext()
	if err := s.Update(func(tx *store.Tx) error { _, err := Open(tx, tctx, owner, agent); return err }); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return Deposit(tx, tctx, owner, agent, 0) }); !errors.Is(err, contracts.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return Deposit(tx, tctx, owner, agent, 500) }); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return Withdraw(tx, tctx, agent, owner, 501) }); !errors.Is(err, contracts.ErrInsufficientVaultBalance) {
		t.Fatalf("expected ErrInsufficientVaultBalance, got %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return Withdraw(tx, tctx, agent, owner, 500) }); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	_ = s.View(func(tx *store.Tx) error {
		bal, _ := Balance(tx, tctx, agent)
		if bal != 0 {
			t.Fatalf("balance after withdraw: got=%d want=0", bal)
		}
		return nil
	})
	if err := s.Audit(); err != nil {
		t.Fatalf("audit failed: %v", err)
	}
}

func TestDeposit_UnknownVault(t *testing.T) {
	s := newFundedStore(t)
	err := s.Update(func(tx *store.Tx) error { return Deposit(tx, testContext(), owner, models.Key{0x99}, 1) })
	if !errors.Is(err, contracts.ErrInvalidAgentVault) {
		t.Fatalf("expected ErrInvalidAgentVault, got %v", err)
	}
}

func TestTreasury_CollectAndWithdraw(t *testing.T) {
	s := newFundedStore(t)
	tctx := testContext()
	if err := s.Update(func(tx *store.Tx) error { _, err := OpenTreasury(tx, tctx, authority); return err }); err != nil {
		t.Fatalf("open treasury failed: %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return Collect(tx, tctx, owner, 700) }); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return WithdrawTreasury(tx, tctx, owner, owner, 1) }); !errors.Is(err, contracts.ErrUnauthorizedAuthority) {
		t.Fatalf("expected ErrUnauthorizedAuthority, got %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return WithdrawTreasury(tx, tctx, authority, authority, 701) }); !errors.Is(err, contracts.ErrInsufficientTreasury) {
		t.Fatalf("expected ErrInsufficientTreasury, got %v", err)
	}
	if err := s.Update(func(tx *store.Tx) error { return WithdrawTreasury(tx, tctx, authority, authority, 700) }); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	_ = s.View(func(tx *store.Tx) error {
		_, rec, err := LoadTreasury(tx, tctx)
		if err != nil {
			t.Fatalf("load treasury failed: %v", err)
		}
		if rec.TotalCollected != 700 {
			t.Fatalf("total collected: got=%d want=%d", rec.TotalCollected, 700)
		}
		return nil
	})
}

func TestOpenTreasury_Once(t *testing.T) {
	s := newFundedStore(t)
	tctx := testContext()
	open := func(tx *store.Tx) error { _, err := OpenTreasury(tx, tctx, authority); return err }
	if err := s.Update(open); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Update(open); !errors.Is(err, contracts.ErrAccountAlreadyInUse) {
		t.Fatalf("expected ErrAccountAlreadyInUse, got %v", err)
	}
}

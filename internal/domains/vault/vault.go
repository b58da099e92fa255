package vault

import (
	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// Open creates the vault of agent. payer funds its rent floor.
func Open(tx *store.Tx, tctx contracts.TxContext, payer, agent models.Key) (models.Key, error) {
	addr := addressing.New(tctx.Program).Vault(agent)
	if err := store.Create(tx, addr, AgentVault{Agent: agent, Bump: addressing.CanonicalBump}); err != nil {
		return models.Key{}, err
	}
	if err := FundRent(tx, tctx, payer, addr, AgentVaultLen); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

// Load returns the vault of agent and checks its binding.
func Load(tx *store.Tx, tctx contracts.TxContext, agent models.Key) (models.Key, AgentVault, error) {
	addr := addressing.New(tctx.Program).Vault(agent)
	v, ok, err := store.Lookup[AgentVault](tx, addr)
	if err != nil {
		return addr, v, err
	}
	if !ok || v.Agent != agent {
		return addr, v, contracts.ErrInvalidAgentVault
	}
	return addr, v, nil
}

// Deposit moves amount from depositor into the vault of agent.
func Deposit(tx *store.Tx, tctx contracts.TxContext, depositor, agent models.Key, amount uint64) error {
	if amount == 0 {
		return contracts.ErrInvalidAmount
	}
	addr, _, err := Load(tx, tctx, agent)
	if err != nil {
		return err
	}
	return tx.Transfer(depositor, addr, amount)
}

// Withdraw pays amount from the vault of agent to the given wallet. Callers
// authorize the owner before calling.
func Withdraw(tx *store.Tx, tctx contracts.TxContext, agent, to models.Key, amount uint64) error {
	if amount == 0 {
		return contracts.ErrInvalidAmount
	}
	addr, _, err := Load(tx, tctx, agent)
	if err != nil {
		return err
	}
	return TransferFrom(tx, tctx, addr, AgentVaultLen, to, amount, contracts.ErrInsufficientVaultBalance)
}

// Payout moves amount from a custodial account into the vault of agent.
func Payout(tx *store.Tx, tctx contracts.TxContext, from, agent models.Key, amount uint64) (models.Key, error) {
	addr, _, err := Load(tx, tctx, agent)
	if err != nil {
		return addr, err
	}
	return addr, tx.Transfer(from, addr, amount)
}

// Balance is the withdrawable balance of agent's vault.
func Balance(tx *store.Tx, tctx contracts.TxContext, agent models.Key) (uint64, error) {
	addr, _, err := Load(tx, tctx, agent)
	if err != nil {
		return 0, err
	}
	return Available(tx, tctx, addr, AgentVaultLen)
}

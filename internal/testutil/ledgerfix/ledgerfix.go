// Package ledgerfix builds initialized in-memory ledgers for domain tests.
package ledgerfix

import (
	"testing"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const (
	StartTime     int64  = 1_700_000_000
	StartingFunds uint64 = 100 * models.LamportsPerUnit
)

var Program = models.Key{0xAA, 0xBB}

type Fixture struct {
	t         testing.TB
	Store     *store.Store
	Ctx       contracts.TxContext
	Authority models.Key
}

// Agent is a registered agent with its principals.
type Agent struct {
	Key    models.Key
	Owner  models.Key
	Signer models.Key
	Vault  models.Key
}

// New returns a ledger with config and treasury initialized by a funded
// authority wallet.
func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{
		t:         t,
		Store:     store.New(nil),
		Ctx:       contracts.TxContext{Program: Program, Now: StartTime, Policy: contracts.DefaultPolicy()},
		Authority: models.Key{0x01},
	}
	f.MustUpdate(func(tx *store.Tx) error {
		if err := tx.Credit(f.Authority, StartingFunds); err != nil {
			return err
		}
		_, err := registry.InitializeConfig(tx, f.Ctx, f.Authority, f.Authority)
		return err
	})
	return f
}

// Advance moves the fixture clock forward.
func (f *Fixture) Advance(seconds int64) {
	f.Ctx.Now += seconds
}

func (f *Fixture) Update(fn func(tx *store.Tx) error) error {
	return f.Store.Update(fn)
}

func (f *Fixture) MustUpdate(fn func(tx *store.Tx) error) {
	f.t.Helper()
	if err := f.Store.Update(fn); err != nil {
		f.t.Fatalf("update failed: %v", err)
	}
}

func (f *Fixture) View(fn func(tx *store.Tx) error) {
	f.t.Helper()
	if err := f.Store.View(fn); err != nil {
		f.t.Fatalf("view failed: %v", err)
	}
}

// Wallet returns a distinct wallet key funded with StartingFunds.
func (f *Fixture) Wallet(seed byte) models.Key {
	f.t.Helper()
	key := models.Key{0x0D, seed}
	f.MustUpdate(func(tx *store.Tx) error { return tx.Credit(key, StartingFunds) })
	return key
}

// Agent registers an agent for a freshly funded owner wallet.
func (f *Fixture) Agent(seed byte) Agent {
	f.t.Helper()
	a := Agent{
		Owner:  f.Wallet(seed),
		Signer: models.Key{0x05, seed},
	}
	f.MustUpdate(func(tx *store.Tx) error {
		out, err := registry.InitializeAgent(tx, f.Ctx, a.Owner, registry.InitAgentRequest{
			AgentID:      models.Hash{seed},
			DisplayName:  "agent",
			Traits:       registry.Traits{500, 500, 500, 500, 500, 500},
			MetadataHash: models.Hash{0x4D, seed},
			AgentSigner:  a.Signer,
		})
		a.Key, a.Vault = out.Agent, out.Vault
		return err
	})
	return a
}

// Sign returns a verified signature by the agent's signer over the canonical
// payload of action.
func (f *Fixture) Sign(a Agent, action contracts.Action, payload []byte) contracts.AgentSignature {
	return contracts.AgentSignature{
		Signer:   a.Signer,
		Message:  contracts.AgentMessage(f.Ctx.Program, a.Key, action, payload),
		Verified: true,
	}
}

func (f *Fixture) Lamports(key models.Key) uint64 {
	f.t.Helper()
	var out uint64
	f.View(func(tx *store.Tx) error {
		var err error
		out, err = tx.Lamports(key)
		return err
	})
	return out
}

// AssertConserved fails the test if total balances drifted from minted supply.
func (f *Fixture) AssertConserved() {
	f.t.Helper()
	if err := f.Store.Audit(); err != nil {
		f.t.Fatalf("conservation audit failed: %v", err)
	}
}

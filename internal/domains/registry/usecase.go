package registry

import (
	"errors"

	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/vault"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// InitializeConfig creates the program config and the treasury. caller must
// be the program's upgrade authority, resolved by the host beforehand.
func InitializeConfig(tx *store.Tx, tctx contracts.TxContext, caller, upgradeAuthority models.Key) (models.Key, error) {
	if upgradeAuthority.IsZero() {
		return models.Key{}, contracts.ErrProgramImmutable
	}
	if caller != upgradeAuthority {
		return models.Key{}, contracts.ErrUnauthorizedAuthority
	}
	addr := addressing.New(tctx.Program).Config()
	cfg := ProgramConfig{Authority: caller, Bump: addressing.CanonicalBump}
	if err := store.Create(tx, addr, cfg); err != nil {
		return models.Key{}, err
	}
	if _, err := vault.OpenTreasury(tx, tctx, caller); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

func LoadConfig(tx *store.Tx, tctx contracts.TxContext) (models.Key, ProgramConfig, error) {
	addr := addressing.New(tctx.Program).Config()
	cfg, err := store.Get[ProgramConfig](tx, addr)
	if errors.Is(err, contracts.ErrAccountNotInitialized) {
		return addr, cfg, contracts.ErrConfigNotInitialized
	}
	return addr, cfg, err
}

// InitializedAgent is the outcome of a registration.
type InitializedAgent struct {
	Agent models.Key `json:"agent"`
	Vault models.Key `json:"vault"`
	Fee   uint64     `json:"fee"`
}

// InitializeAgent registers a new agent for owner, opens its vault and
// collects the registration fee into the treasury.
func InitializeAgent(tx *store.Tx, tctx contracts.TxContext, owner models.Key, req InitAgentRequest) (InitializedAgent, error) {
	var out InitializedAgent
	if err := ValidateInitAgent(owner, req); err != nil {
		return out, err
	}
	cfgAddr, cfg, err := LoadConfig(tx, tctx)
	if err != nil {
		return out, err
	}
	out.Fee = RegistrationFee(cfg.AgentCount)
	next, ok := checkedInc(cfg.AgentCount)
	if !ok {
		return out, contracts.ErrArithmeticOverflow
	}

	out.Agent = addressing.New(tctx.Program).Agent(owner, req.AgentID)
	agent := AgentIdentity{
		Owner:        owner,
		AgentID:      req.AgentID,
		AgentSigner:  req.AgentSigner,
		DisplayName:  req.DisplayName,
		Traits:       req.Traits,
		CitizenLevel: NewcomerLevel,
		MetadataHash: req.MetadataHash,
		CreatedAt:    tctx.Now,
		UpdatedAt:    tctx.Now,
		IsActive:     true,
		Bump:         addressing.CanonicalBump,
	}
	if err := store.Create(tx, out.Agent, agent); err != nil {
		return out, err
	}
	if out.Vault, err = vault.Open(tx, tctx, owner, out.Agent); err != nil {
		return out, err
	}
	if err := vault.Collect(tx, tctx, owner, out.Fee); err != nil {
		return out, err
	}
	cfg.AgentCount = next
	if err := store.Put(tx, cfgAddr, cfg); err != nil {
		return out, err
	}
	return out, nil
}

func LoadAgent(tx *store.Tx, agent models.Key) (AgentIdentity, error) {
	return store.Get[AgentIdentity](tx, agent)
}

// RequireActive loads agent and fails with ErrAgentInactive when it is
// deactivated.
func RequireActive(tx *store.Tx, agent models.Key) (AgentIdentity, error) {
	rec, err := LoadAgent(tx, agent)
	if err != nil {
		return rec, err
	}
	if !rec.IsActive {
		return rec, contracts.ErrAgentInactive
	}
	return rec, nil
}

// Authorize checks that sig is the agent signer's verified signature over the
// canonical payload of action. The agent must be active.
func Authorize(tx *store.Tx, tctx contracts.TxContext, agent models.Key, sig contracts.AgentSignature, action contracts.Action, payload []byte) (AgentIdentity, error) {
	rec, err := RequireActive(tx, agent)
	if err != nil {
		return rec, err
	}
	msg := contracts.AgentMessage(tctx.Program, agent, action, payload)
	if err := sig.Check(rec.AgentSigner, msg); err != nil {
		return rec, err
	}
	return rec, nil
}

// RotateSignerPayload is what the current signer signs to hand over to next.
func RotateSignerPayload(next models.Key) []byte {
	return append([]byte(nil), next[:]...)
}

// RotateAgentSigner replaces the agent signer. Only the current signer can
// authorize it.
func RotateAgentSigner(tx *store.Tx, tctx contracts.TxContext, agent models.Key, sig contracts.AgentSignature, next models.Key) error {
	rec, err := LoadAgent(tx, agent)
	if err != nil {
		return err
	}
	msg := contracts.AgentMessage(tctx.Program, agent, contracts.ActionRotateAgentSigner, RotateSignerPayload(next))
	if err := sig.Check(rec.AgentSigner, msg); err != nil {
		return err
	}
	if err := ValidateSigner(rec.Owner, next); err != nil {
		return err
	}
	rec.AgentSigner = next
	rec.UpdatedAt = tctx.Now
	return store.Put(tx, agent, rec)
}

// DepositToVault credits the vault of a registered agent.
func DepositToVault(tx *store.Tx, tctx contracts.TxContext, depositor, agent models.Key, amount uint64) error {
	if _, err := LoadAgent(tx, agent); err != nil {
		return err
	}
	return vault.Deposit(tx, tctx, depositor, agent, amount)
}

// WithdrawFromVault pays out of the agent vault to its owner wallet.
func WithdrawFromVault(tx *store.Tx, tctx contracts.TxContext, caller, agent models.Key, amount uint64) error {
	rec, err := LoadAgent(tx, agent)
	if err != nil {
		return err
	}
	if caller != rec.Owner {
		return contracts.ErrUnauthorizedAuthority
	}
	return vault.Withdraw(tx, tctx, agent, caller, amount)
}

// CountEnclave increments the network-wide enclave counter.
func CountEnclave(tx *store.Tx, tctx contracts.TxContext) error {
	addr, cfg, err := LoadConfig(tx, tctx)
	if err != nil {
		return err
	}
	next, ok := checkedInc(cfg.EnclaveCount)
	if !ok {
		return contracts.ErrArithmeticOverflow
	}
	cfg.EnclaveCount = next
	return store.Put(tx, addr, cfg)
}

func checkedInc(v uint32) (uint32, bool) {
	if v == ^uint32(0) {
		return v, false
	}
	return v + 1, true
}

// Package enclave keeps the topic namespaces agents post into and tips target.
package enclave

import (
	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// Enclave binds a name hash to the agent that created it. CreatorOwner is
// copied from the agent at creation and receives the enclave share of tips.
type Enclave struct {
	NameHash     models.Hash `json:"name_hash"`
	CreatorAgent models.Key  `json:"creator_agent"`
	CreatorOwner models.Key  `json:"creator_owner"`
	MetadataHash models.Hash `json:"metadata_hash"`
	CreatedAt    int64       `json:"created_at"`
	IsActive     bool        `json:"is_active"`
	Bump         uint8       `json:"bump"`
}

func CreatePayload(nameHash, metadataHash models.Hash) []byte {
	out := make([]byte, 0, 2*models.HashLength)
	out = append(out, nameHash[:]...)
	return append(out, metadataHash[:]...)
}

// Create registers a new enclave on behalf of agent.
func Create(tx *store.Tx, tctx contracts.TxContext, agent models.Key, sig contracts.AgentSignature, nameHash, metadataHash models.Hash) (models.Key, error) {
	if nameHash.IsZero() {
		return models.Key{}, contracts.ErrEmptyEnclaveNameHash
	}
	creator, err := registry.Authorize(tx, tctx, agent, sig, contracts.ActionCreateEnclave, CreatePayload(nameHash, metadataHash))
	if err != nil {
		return models.Key{}, err
	}
	addr := addressing.New(tctx.Program).Enclave(nameHash)
	rec := Enclave{
		NameHash:     nameHash,
		CreatorAgent: agent,
		CreatorOwner: creator.Owner,
		MetadataHash: metadataHash,
		CreatedAt:    tctx.Now,
		IsActive:     true,
		Bump:         addressing.CanonicalBump,
	}
	if err := store.Create(tx, addr, rec); err != nil {
		return models.Key{}, err
	}
	if err := registry.CountEnclave(tx, tctx); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

func Load(tx *store.Tx, addr models.Key) (Enclave, error) {
	return store.Get[Enclave](tx, addr)
}

// RequireActive loads an enclave that entries or tips are about to reference.
// A missing enclave fails with missing, an inactive one with ErrEnclaveInactive.
func RequireActive(tx *store.Tx, addr models.Key, missing error) (Enclave, error) {
	rec, ok, err := store.Lookup[Enclave](tx, addr)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, missing
	}
	if !rec.IsActive {
		return rec, contracts.ErrEnclaveInactive
	}
	return rec, nil
}

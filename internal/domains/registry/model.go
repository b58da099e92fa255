package registry

import (
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const (
	TraitCount     = 6
	MaxTraitValue  = 1000
	MaxDisplayName = 32
	NewcomerLevel  = 1
)

// ProgramConfig is the singleton registry record.
type ProgramConfig struct {
	Authority    models.Key `json:"authority"`
	AgentCount   uint32     `json:"agent_count"`
	EnclaveCount uint32     `json:"enclave_count"`
	Bump         uint8      `json:"bump"`
}

// Traits are HEXACO scores in the order H, E, X, A, C, O.
type Traits [TraitCount]uint16

// AgentIdentity is a registered agent. Owner controls funds, AgentSigner
// authorizes content.
type AgentIdentity struct {
	Owner           models.Key  `json:"owner"`
	AgentID         models.Hash `json:"agent_id"`
	AgentSigner     models.Key  `json:"agent_signer"`
	DisplayName     string      `json:"display_name"`
	Traits          Traits      `json:"traits"`
	CitizenLevel    uint8       `json:"citizen_level"`
	XP              uint64      `json:"xp"`
	TotalEntries    uint32      `json:"total_entries"`
	ReputationScore int64       `json:"reputation_score"`
	MetadataHash    models.Hash `json:"metadata_hash"`
	CreatedAt       int64       `json:"created_at"`
	UpdatedAt       int64       `json:"updated_at"`
	IsActive        bool        `json:"is_active"`
	Bump            uint8       `json:"bump"`
}

// InitAgentRequest carries the client-chosen fields of a new agent.
type InitAgentRequest struct {
	AgentID      models.Hash `json:"agent_id"`
	DisplayName  string      `json:"display_name"`
	Traits       Traits      `json:"traits"`
	MetadataHash models.Hash `json:"metadata_hash"`
	AgentSigner  models.Key  `json:"agent_signer"`
}

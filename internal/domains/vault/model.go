package vault

import (
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// Record sizes feed the rent floor formula.
const (
	AgentVaultLen     uint64 = 8 + 32 + 1
	GlobalTreasuryLen uint64 = 8 + 32 + 8 + 1
)

// AgentVault marks the custodial balance of one agent. The value itself lives
// in the store's balance column at the vault address.
type AgentVault struct {
	Agent models.Key `json:"agent"`
	Bump  uint8      `json:"bump"`
}

// GlobalTreasury is the singleton fee sink.
type GlobalTreasury struct {
	Authority      models.Key `json:"authority"`
	TotalCollected uint64     `json:"total_collected"`
	Bump           uint8      `json:"bump"`
}

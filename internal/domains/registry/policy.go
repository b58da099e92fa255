package registry

import (
	"strings"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// Registration fee schedule over the network-wide agent count.
const (
	FreeAgentCap   uint32 = 1_000
	LowFeeAgentCap uint32 = 5_000

	LowFeeLamports  = models.LamportsPerUnit / 10
	HighFeeLamports = models.LamportsPerUnit / 2
)

// RegistrationFee is evaluated against the agent count before the new agent
// is counted.
func RegistrationFee(agentCount uint32) uint64 {
	switch {
	case agentCount < FreeAgentCap:
		return 0
	case agentCount < LowFeeAgentCap:
		return LowFeeLamports
	default:
		return HighFeeLamports
	}
}

func ValidateTraits(traits Traits) error {
	for _, v := range traits {
		if v > MaxTraitValue {
			return contracts.ErrInvalidTraitValue
		}
	}
	return nil
}

func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return contracts.ErrEmptyDisplayName
	}
	if len(name) > MaxDisplayName {
		return contracts.ErrDisplayNameTooLong
	}
	return nil
}

// ValidateSigner checks a prospective agent signer against the owner wallet.
func ValidateSigner(owner, signer models.Key) error {
	if signer.IsZero() {
		return contracts.ErrInvalidAgentSigner
	}
	if signer == owner {
		return contracts.ErrAgentSignerEqualsOwner
	}
	return nil
}

// ValidateInitAgent applies every field rule of a registration request.
func ValidateInitAgent(owner models.Key, req InitAgentRequest) error {
	if err := ValidateTraits(req.Traits); err != nil {
		return err
	}
	if err := ValidateDisplayName(req.DisplayName); err != nil {
		return err
	}
	return ValidateSigner(owner, req.AgentSigner)
}

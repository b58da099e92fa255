package contracts

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/angganurf/wunderland-sol/pkg/models"
)

// SignDomain prefixes every agent-signed payload.
const SignDomain = "WUNDERLAND_SOL_V2"

// Action identifies which operation an agent signature authorizes.
type Action uint8

const (
	ActionCreateEnclave Action = iota + 1
	ActionAnchorPost
	ActionAnchorComment
	ActionCastVote
	ActionRotateAgentSigner
	ActionPlaceJobBid
	ActionWithdrawJobBid
	ActionSubmitJobWork
)

var actionNames = map[Action]string{
	ActionCreateEnclave:     "create_enclave",
	ActionAnchorPost:        "anchor_post",
	ActionAnchorComment:     "anchor_comment",
	ActionCastVote:          "cast_vote",
	ActionRotateAgentSigner: "rotate_agent_signer",
	ActionPlaceJobBid:       "place_job_bid",
	ActionWithdrawJobBid:    "withdraw_job_bid",
	ActionSubmitJobWork:     "submit_job_work",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// AgentMessage builds the canonical payload an agent signer must sign:
// domain || action || program || agent || len(payload) || payload.
func AgentMessage(program, agent models.Key, action Action, payload []byte) []byte {
	out := make([]byte, 0, len(SignDomain)+1+2*models.KeyLength+4+len(payload))
	out = append(out, SignDomain...)
	out = append(out, byte(action))
	out = append(out, program[:]...)
	out = append(out, agent[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

// AgentSignature is the result of verifying an ed25519 signature outside the
// ledger core. Verified says the signature over Message checked out for Signer.
type AgentSignature struct {
	Signer   models.Key
	Message  []byte
	Verified bool
}

// Check authorizes the signature against the agent's registered signer and the
// payload the operation expects.
func (s AgentSignature) Check(expectedSigner models.Key, expectedMessage []byte) error {
	if s.Signer.IsZero() {
		return ErrMissingEd25519Instruction
	}
	if !s.Verified {
		return ErrInvalidEd25519Instruction
	}
	if s.Signer != expectedSigner {
		return ErrSignaturePublicKeyMismatch
	}
	if !bytes.Equal(s.Message, expectedMessage) {
		return ErrSignatureMessageMismatch
	}
	return nil
}

// AuthorityVerifier reports the upgrade authority of the running program.
// Implementations return ErrProgramImmutable when none is set and
// ErrInvalidProgramData when the proof cannot be read.
type AuthorityVerifier interface {
	UpgradeAuthority(ctx context.Context) (models.Key, error)
}

// StaticAuthority serves an upgrade authority fixed at startup.
type StaticAuthority struct {
	Authority models.Key
}

func (s StaticAuthority) UpgradeAuthority(ctx context.Context) (models.Key, error) {
	if err := ctx.Err(); err != nil {
		return models.Key{}, WrapCategorizedError(CategoryInfrastructure, err)
	}
	if s.Authority.IsZero() {
		return models.Key{}, ErrProgramImmutable
	}
	return s.Authority, nil
}

package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// Category groups ledger failures by what the caller has to change before
// resubmitting.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthorization  Category = "authorization"
	CategoryState          Category = "state"
	CategoryArithmetic     Category = "arithmetic"
	CategoryResource       Category = "resource"
	CategoryInfrastructure Category = "infrastructure"
)

// ErrorCodeBase is the first ledger error code. Codes are stable and never
// reused.
const ErrorCodeBase uint32 = 6000

// Error is a ledger rejection. Every operation aborts as a whole when one is
// returned.
type Error struct {
	Code     uint32
	Name     string
	Message  string
	Category Category
}

func (e *Error) Error() string {
	return e.Message
}

var catalogue []*Error

func define(name, message string, category Category) *Error {
	e := &Error{
		Code:     ErrorCodeBase + uint32(len(catalogue)),
		Name:     name,
		Message:  message,
		Category: category,
	}
	catalogue = append(catalogue, e)
	return e
}

// Order matters: codes are assigned by position.
var (
	ErrInvalidTraitValue          = define("InvalidTraitValue", "trait value must be between 0 and 1000", CategoryValidation)
	ErrInvalidVoteValue           = define("InvalidVoteValue", "vote value must be +1 or -1", CategoryValidation)
	ErrAgentInactive              = define("AgentInactive", "agent is not active", CategoryState)
	ErrInvalidCitizenLevel        = define("InvalidCitizenLevel", "citizen level must be between 1 and 6", CategoryValidation)
	ErrEmptyDisplayName           = define("EmptyDisplayName", "display name cannot be empty", CategoryValidation)
	ErrSelfVote                   = define("SelfVote", "cannot vote on your own post", CategoryState)
	ErrPostCountOverflow          = define("PostCountOverflow", "post count overflow", CategoryArithmetic)
	ErrVoteCountOverflow          = define("VoteCountOverflow", "vote count overflow", CategoryArithmetic)
	ErrReputationOverflow         = define("ReputationOverflow", "reputation score overflow", CategoryArithmetic)
	ErrUnauthorizedAuthority      = define("UnauthorizedAuthority", "unauthorized authority", CategoryAuthorization)
	ErrAgentSignerEqualsOwner     = define("AgentSignerEqualsOwner", "agent signer must be distinct from owner wallet", CategoryValidation)
	ErrMissingEd25519Instruction  = define("MissingEd25519Instruction", "missing agent signature", CategoryAuthorization)
	ErrInvalidEd25519Instruction  = define("InvalidEd25519Instruction", "agent signature did not verify", CategoryAuthorization)
	ErrSignaturePublicKeyMismatch = define("SignaturePublicKeyMismatch", "signed payload public key mismatch", CategoryAuthorization)
	ErrSignatureMessageMismatch   = define("SignatureMessageMismatch", "signed payload message mismatch", CategoryAuthorization)
	ErrInvalidReplyTarget         = define("InvalidReplyTarget", "invalid reply target", CategoryValidation)
	ErrInvalidAmount              = define("InvalidAmount", "invalid amount", CategoryValidation)
	ErrInsufficientVaultBalance   = define("InsufficientVaultBalance", "insufficient vault balance", CategoryResource)
	ErrInvalidProgramData         = define("InvalidProgramData", "invalid program data account", CategoryInfrastructure)
	ErrProgramImmutable           = define("ProgramImmutable", "program is immutable (no upgrade authority)", CategoryInfrastructure)
	ErrEmptyEnclaveNameHash       = define("EmptyEnclaveNameHash", "enclave name hash cannot be empty", CategoryValidation)
	ErrEnclaveInactive            = define("EnclaveInactive", "enclave is not active", CategoryState)
	ErrTipBelowMinimum            = define("TipBelowMinimum", "tip amount is below minimum (0.015)", CategoryValidation)
	ErrTipNotPending              = define("TipNotPending", "tip is not in pending status", CategoryState)
	ErrTipNotTimedOut             = define("TipNotTimedOut", "tip has not timed out yet (30 min required)", CategoryResource)
	ErrRateLimitMinuteExceeded    = define("RateLimitMinuteExceeded", "rate limit exceeded: max 3 tips per minute", CategoryResource)
	ErrRateLimitHourExceeded      = define("RateLimitHourExceeded", "rate limit exceeded: max 20 tips per hour", CategoryResource)
	ErrInvalidTargetEnclave       = define("InvalidTargetEnclave", "invalid target enclave", CategoryValidation)
	ErrEscrowAmountMismatch       = define("EscrowAmountMismatch", "escrow amount mismatch", CategoryState)
	ErrArithmeticOverflow         = define("ArithmeticOverflow", "arithmetic overflow", CategoryArithmetic)

	ErrUnauthorizedJobCreator       = define("UnauthorizedJobCreator", "only the job creator can perform this action", CategoryAuthorization)
	ErrJobNotOpen                   = define("JobNotOpen", "job is not open", CategoryState)
	ErrBidNotActive                 = define("BidNotActive", "bid is not active", CategoryState)
	ErrJobNotSubmitted              = define("JobNotSubmitted", "job has no pending submission", CategoryState)
	ErrInvalidJobEscrow             = define("InvalidJobEscrow", "job escrow does not belong to this job", CategoryState)
	ErrUnauthorizedJobAgent         = define("UnauthorizedJobAgent", "agent is not assigned to this job", CategoryAuthorization)
	ErrInsufficientJobEscrowBalance = define("InsufficientJobEscrowBalance", "job escrow cannot cover payout and rent floor", CategoryResource)
	ErrInvalidAgentVault            = define("InvalidAgentVault", "agent vault does not belong to this agent", CategoryState)
	ErrJobNotAssigned               = define("JobNotAssigned", "job is not assigned", CategoryState)
	ErrInvalidJobBid                = define("InvalidJobBid", "bid does not belong to this job", CategoryValidation)

	ErrDisplayNameTooLong      = define("DisplayNameTooLong", "display name exceeds 32 bytes", CategoryValidation)
	ErrInvalidAgentSigner      = define("InvalidAgentSigner", "agent signer key is required", CategoryValidation)
	ErrInvalidSourceType       = define("InvalidSourceType", "tip source type must be text or url", CategoryValidation)
	ErrUnauthorizedTipper      = define("UnauthorizedTipper", "only the tipper can reclaim this tip", CategoryAuthorization)
	ErrInsufficientFunds       = define("InsufficientFunds", "insufficient funds", CategoryResource)
	ErrInsufficientTreasury    = define("InsufficientTreasuryBalance", "insufficient treasury balance", CategoryResource)
	ErrInvalidStatusTransition = define("InvalidStatusTransition", "status transition is not allowed", CategoryState)
	ErrAccountAlreadyInUse     = define("AccountAlreadyInUse", "account already in use", CategoryState)
	ErrAccountNotInitialized   = define("AccountNotInitialized", "account is not initialized", CategoryState)
	ErrConservationViolated    = define("ConservationViolated", "balance conservation check failed", CategoryInfrastructure)
	ErrFaucetDisabled          = define("FaucetDisabled", "faucet is disabled", CategoryAuthorization)
	ErrInvalidPercentage       = define("InvalidPercentage", "percentage must be between 0 and 100", CategoryValidation)
	ErrReadOnlyTransaction     = define("ReadOnlyTransaction", "transaction is read-only", CategoryInfrastructure)
	ErrInvalidEntryKind        = define("InvalidEntryKind", "entry kind is not valid here", CategoryValidation)
	ErrInvalidSubmissionHash   = define("InvalidSubmissionHash", "submission hash cannot be empty", CategoryValidation)
	ErrConfigNotInitialized    = define("ConfigNotInitialized", "program config is not initialized", CategoryState)
)

// Catalogue returns every defined ledger error in code order.
func Catalogue() []*Error {
	return append([]*Error(nil), catalogue...)
}

// Lookup returns the ledger error with the given code.
func Lookup(code uint32) (*Error, bool) {
	if code < ErrorCodeBase {
		return nil, false
	}
	idx := int(code - ErrorCodeBase)
	if idx >= len(catalogue) {
		return nil, false
	}
	return catalogue[idx], true
}

// AsLedgerError unwraps err to the ledger rejection it carries.
func AsLedgerError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// CategorizedError tags a non-ledger failure (storage, codec, verifier) with a
// category so it can be counted and mapped like a ledger rejection.
type CategorizedError struct {
	Category Category
	Err      error
}

func (e *CategorizedError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *CategorizedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func normalizeCategory(category Category) Category {
	switch Category(strings.ToLower(strings.TrimSpace(string(category)))) {
	case CategoryValidation:
		return CategoryValidation
	case CategoryAuthorization:
		return CategoryAuthorization
	case CategoryState:
		return CategoryState
	case CategoryArithmetic:
		return CategoryArithmetic
	case CategoryResource:
		return CategoryResource
	default:
		return CategoryInfrastructure
	}
}

func WrapCategorizedError(category Category, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsLedgerError(err); ok {
		return err
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeCategory(category),
		Err:      err,
	}
}

// CategoryOf classifies any error. Unknown errors count as infrastructure.
func CategoryOf(err error) Category {
	if le, ok := AsLedgerError(err); ok {
		return le.Category
	}
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeCategory(classified.Category)
	}
	return CategoryInfrastructure
}

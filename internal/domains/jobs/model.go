package jobs

import (
	"encoding/binary"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const JobEscrowLen uint64 = 8 + 32 + 8 + 1

type JobStatus uint8

const (
	JobOpen JobStatus = iota
	JobAssigned
	JobSubmitted
	JobCompleted
)

var jobStatusNames = [...]string{"open", "assigned", "submitted", "completed"}

func (s JobStatus) String() string {
	if int(s) < len(jobStatusNames) {
		return jobStatusNames[s]
	}
	return "unknown"
}

func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidateJobTransition allows only the forward edges
// open -> assigned -> submitted -> completed.
func ValidateJobTransition(from, to JobStatus) error {
	if from < JobCompleted && to == from+1 {
		return nil
	}
	return contracts.ErrInvalidStatusTransition
}

type BidStatus uint8

const (
	BidActive BidStatus = iota
	BidAccepted
	BidWithdrawn
)

var bidStatusNames = [...]string{"active", "accepted", "withdrawn"}

func (s BidStatus) String() string {
	if int(s) < len(bidStatusNames) {
		return bidStatusNames[s]
	}
	return "unknown"
}

func (s BidStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidateBidTransition: active -> accepted|withdrawn. Both are terminal.
func ValidateBidTransition(from, to BidStatus) error {
	if from == BidActive && (to == BidAccepted || to == BidWithdrawn) {
		return nil
	}
	return contracts.ErrInvalidStatusTransition
}

// JobPosting is a creator-funded unit of work.
type JobPosting struct {
	Creator        models.Key  `json:"creator"`
	JobNonce       uint64      `json:"job_nonce"`
	MetadataHash   models.Hash `json:"metadata_hash"`
	BudgetLamports uint64      `json:"budget_lamports"`
	Status         JobStatus   `json:"status"`
	AssignedAgent  models.Key  `json:"assigned_agent"`
	AcceptedBid    models.Key  `json:"accepted_bid"`
	CreatedAt      int64       `json:"created_at"`
	UpdatedAt      int64       `json:"updated_at"`
	Bump           uint8       `json:"bump"`
}

// JobEscrow holds the budget of one job until approval. Amount is the
// budget until payout and zero afterwards.
type JobEscrow struct {
	Job    models.Key `json:"job"`
	Amount uint64     `json:"amount"`
	Bump   uint8      `json:"bump"`
}

type JobBid struct {
	Job         models.Key  `json:"job"`
	BidderAgent models.Key  `json:"bidder_agent"`
	BidLamports uint64      `json:"bid_lamports"`
	MessageHash models.Hash `json:"message_hash"`
	Status      BidStatus   `json:"status"`
	CreatedAt   int64       `json:"created_at"`
	Bump        uint8       `json:"bump"`
}

type JobSubmission struct {
	Job            models.Key  `json:"job"`
	Agent          models.Key  `json:"agent"`
	SubmissionHash models.Hash `json:"submission_hash"`
	CreatedAt      int64       `json:"created_at"`
	Bump           uint8       `json:"bump"`
}

func BidPayload(job models.Key, bidLamports uint64, messageHash models.Hash) []byte {
	out := make([]byte, 0, models.KeyLength+8+models.HashLength)
	out = append(out, job[:]...)
	out = binary.LittleEndian.AppendUint64(out, bidLamports)
	return append(out, messageHash[:]...)
}

func WithdrawBidPayload(bid models.Key) []byte {
	return append([]byte(nil), bid[:]...)
}

func SubmitPayload(job models.Key, submissionHash models.Hash) []byte {
	out := make([]byte, 0, models.KeyLength+models.HashLength)
	out = append(out, job[:]...)
	return append(out, submissionHash[:]...)
}

package tips

import (
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const TipEscrowLen uint64 = 8 + 32 + 8 + 1

type TipStatus uint8

const (
	TipPending TipStatus = iota
	TipSettled
	TipRefunded
)

var tipStatusNames = [...]string{"pending", "settled", "refunded"}

func (s TipStatus) String() string {
	if int(s) < len(tipStatusNames) {
		return tipStatusNames[s]
	}
	return "unknown"
}

func (s TipStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidateTipTransition: pending -> settled|refunded. Both are terminal.
func ValidateTipTransition(from, to TipStatus) error {
	if from == TipPending && (to == TipSettled || to == TipRefunded) {
		return nil
	}
	return contracts.ErrInvalidStatusTransition
}

type SourceType uint8

const (
	SourceText SourceType = iota
	SourceURL
)

func (s SourceType) Valid() bool {
	return s == SourceText || s == SourceURL
}

func (s SourceType) String() string {
	switch s {
	case SourceText:
		return "text"
	case SourceURL:
		return "url"
	default:
		return "unknown"
	}
}

func (s SourceType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SourceType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "text":
		*s = SourceText
	case "url":
		*s = SourceURL
	default:
		return contracts.ErrInvalidSourceType
	}
	return nil
}

type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityBreaking
)

var priorityNames = [...]string{"low", "normal", "high", "breaking"}

func (p Priority) String() string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return "unknown"
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// TipAnchor is a paid content tip. Priority is derived from Amount.
// A zero TargetEnclave means a global tip.
type TipAnchor struct {
	Tipper        models.Key  `json:"tipper"`
	ContentHash   models.Hash `json:"content_hash"`
	Amount        uint64      `json:"amount"`
	Priority      Priority    `json:"priority"`
	SourceType    SourceType  `json:"source_type"`
	TargetEnclave models.Key  `json:"target_enclave"`
	TipNonce      uint64      `json:"tip_nonce"`
	CreatedAt     int64       `json:"created_at"`
	Status        TipStatus   `json:"status"`
	Bump          uint8       `json:"bump"`
}

// TipEscrow holds the tip amount until settlement or refund.
type TipEscrow struct {
	Tip    models.Key `json:"tip"`
	Amount uint64     `json:"amount"`
	Bump   uint8      `json:"bump"`
}

// TipperRateLimit counts a tipper's submissions in the current minute and
// hour windows.
type TipperRateLimit struct {
	Tipper         models.Key `json:"tipper"`
	TipsThisMinute uint16     `json:"tips_this_minute"`
	TipsThisHour   uint16     `json:"tips_this_hour"`
	MinuteResetAt  int64      `json:"minute_reset_at"`
	HourResetAt    int64      `json:"hour_reset_at"`
	Bump           uint8      `json:"bump"`
}

type SubmitTipRequest struct {
	ContentHash   models.Hash `json:"content_hash"`
	Amount        uint64      `json:"amount"`
	SourceType    SourceType  `json:"source_type"`
	TargetEnclave models.Key  `json:"target_enclave"`
	Nonce         uint64      `json:"nonce"`
}

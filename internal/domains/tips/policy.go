package tips

import (
	"math/bits"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
)

const (
	MinAmount uint64 = 15_000_000

	normalThreshold   uint64 = 25_000_000
	highThreshold     uint64 = 35_000_000
	breakingThreshold uint64 = 45_000_000

	MaxPerMinute uint16 = 3
	MaxPerHour   uint16 = 20

	MinuteWindow int64 = 60
	HourWindow   int64 = 3600

	// RefundTimeout is how long a tip must stay pending before its tipper
	// can reclaim it.
	RefundTimeout int64 = 30 * 60
)

// DerivePriority maps an amount to its priority band. Amounts below MinAmount
// map to low but are rejected before this is consulted.
func DerivePriority(amount uint64) Priority {
	switch {
	case amount >= breakingThreshold:
		return PriorityBreaking
	case amount >= highThreshold:
		return PriorityHigh
	case amount >= normalThreshold:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Admit applies one submission at now to the rate limit windows. An expired
// window resets before its cap is checked.
func (r TipperRateLimit) Admit(now int64) (TipperRateLimit, error) {
	if now >= r.MinuteResetAt {
		r.TipsThisMinute = 0
		r.MinuteResetAt = now + MinuteWindow
	} else if r.TipsThisMinute >= MaxPerMinute {
		return r, contracts.ErrRateLimitMinuteExceeded
	}
	if now >= r.HourResetAt {
		r.TipsThisHour = 0
		r.HourResetAt = now + HourWindow
	} else if r.TipsThisHour >= MaxPerHour {
		return r, contracts.ErrRateLimitHourExceeded
	}
	r.TipsThisMinute++
	r.TipsThisHour++
	return r, nil
}

// SplitSettlement divides amount between the enclave owner and the treasury.
// The owner share rounds down, so the treasury receives any remainder.
func SplitSettlement(amount uint64, percent uint8) (ownerShare, treasuryShare uint64, err error) {
	if percent > 100 {
		return 0, 0, contracts.ErrInvalidPercentage
	}
	hi, lo := bits.Mul64(amount, uint64(percent))
	ownerShare, _ = bits.Div64(hi, lo, 100)
	return ownerShare, amount - ownerShare, nil
}

// TimedOut reports whether a tip created at createdAt may be reclaimed at now.
func TimedOut(createdAt, now int64) bool {
	return now-createdAt >= RefundTimeout
}

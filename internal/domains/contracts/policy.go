package contracts

import (
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const (
	// AccountOverheadBytes is the per-record storage overhead charged by the rent formula.
	AccountOverheadBytes uint64 = 128

	DefaultEnclaveSharePercent     uint8  = 30
	DefaultRentLamportsPerByteYear uint64 = 3480
	DefaultRentExemptionYears      uint64 = 2
)

// Policy holds the tunable economic parameters of a running ledger.
type Policy struct {
	EnclaveSharePercent     uint8
	RentLamportsPerByteYear uint64
	RentExemptionYears      uint64
	DevFaucet               bool
}

func DefaultPolicy() Policy {
	return Policy{
		EnclaveSharePercent:     DefaultEnclaveSharePercent,
		RentLamportsPerByteYear: DefaultRentLamportsPerByteYear,
		RentExemptionYears:      DefaultRentExemptionYears,
	}
}

func (p Policy) Validate() error {
	if p.EnclaveSharePercent > 100 {
		return ErrInvalidPercentage
	}
	if _, ok := p.rentFloor(0); !ok {
		return ErrArithmeticOverflow
	}
	return nil
}

// RentFloor is the minimum balance a custodial record of dataLen bytes must
// keep for as long as it exists. Saturates on overflow.
func (p Policy) RentFloor(dataLen uint64) uint64 {
	floor, ok := p.rentFloor(dataLen)
	if !ok {
		return ^uint64(0)
	}
	return floor
}

func (p Policy) rentFloor(dataLen uint64) (uint64, bool) {
	size, ok := models.CheckedAdd(AccountOverheadBytes, dataLen)
	if !ok {
		return 0, false
	}
	perYear, ok := models.CheckedMul(size, p.RentLamportsPerByteYear)
	if !ok {
		return 0, false
	}
	return models.CheckedMul(perYear, p.RentExemptionYears)
}

// TxContext is the host-supplied environment of one ledger transaction.
// Now is read once when the transaction starts.
type TxContext struct {
	Program models.Key
	Now     int64
	Policy  Policy
}

package models

import (
	"fmt"
	"math/bits"
)

// LamportsPerUnit is the number of minor units in one whole value unit.
const LamportsPerUnit uint64 = 1_000_000_000

// FormatUnits renders a lamport amount as whole units with nine decimals.
func FormatUnits(lamports uint64) string {
	return fmt.Sprintf("%d.%09d", lamports/LamportsPerUnit, lamports%LamportsPerUnit)
}

// CheckedAdd returns a+b and false when the sum overflows.
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// CheckedSub returns a-b and false when b > a.
func CheckedSub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// CheckedMul returns a*b and false when the product overflows.
func CheckedMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

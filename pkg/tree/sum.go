package tree

import "math/bits"

// BigSum is a 128-bit unsigned accumulator for KindBigSumTree
// big-sum-aggregating subtrees, used where a 64-bit SumTree could
// realistically overflow — e.g. total token supply across every identity
// balance in a widely held token.
type BigSum struct {
	Hi uint64
	Lo uint64
}

// BigSumFromUint64 lifts a 64-bit value into a BigSum.
func BigSumFromUint64(v uint64) BigSum { return BigSum{Lo: v} }

// Add returns a+b. Saturation is never performed: true 128-bit overflow
// is a protocol error and detecting it via Overflowed is the caller's
// responsibility.
func (a BigSum) Add(b BigSum) BigSum {
	lo, carry := bits.Add64(a.Lo, b.Lo, 0)
	hi, _ := bits.Add64(a.Hi, b.Hi, carry)
	return BigSum{Hi: hi, Lo: lo}
}

// Overflowed reports whether computing a+b would wrap past 2^128-1.
func (a BigSum) Overflowed(b BigSum) bool {
	_, carry := bits.Add64(a.Lo, b.Lo, 0)
	_, carryHi := bits.Add64(a.Hi, b.Hi, carry)
	return carryHi != 0
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a BigSum) Cmp(b BigSum) int {
	switch {
	case a.Hi < b.Hi:
		return -1
	case a.Hi > b.Hi:
		return 1
	case a.Lo < b.Lo:
		return -1
	case a.Lo > b.Lo:
		return 1
	default:
		return 0
	}
}

func (a BigSum) IsZero() bool { return a.Hi == 0 && a.Lo == 0 }

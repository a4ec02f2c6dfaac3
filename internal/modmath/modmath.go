// Package modmath provides the modular arithmetic primitives used by every
// reduction step in the distributed factorial computation.
//
// The two operations here are the entire mathematical core of the system:
//
//   - MulMod: exact (a*b) mod m without 64-bit overflow
//   - RangeProduct: the modular product over a contiguous integer range,
//     which is the unit of work executed by each worker
//
// Both functions are pure and safe for concurrent use.
package modmath

import "math/bits"

// MulMod computes (a * b) mod m exactly for any uint64 operands.
//
// The product a*b can exceed 64 bits, so the multiplication is widened to
// 128 bits before the reduction. Callers must guarantee m > 0; m == 0 is
// undefined and panics on the division.
func MulMod(a, b, m uint64) uint64 {
	a %= m
	b %= m
	// With both operands reduced below m, the high word of the product is
	// strictly less than m, which is exactly the precondition bits.Div64
	// needs to not overflow.
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, m)
	return rem
}

// RangeProduct computes (begin * (begin+1) * ... * end) mod m, folding each
// factor into the accumulator with MulMod.
//
// This is the worker engine: one call per assigned sub-range, at thread
// level inside the server and conceptually at server level for each shard of
// the full problem. Callers must guarantee begin >= 1, begin <= end and m > 0.
func RangeProduct(begin, end, m uint64) uint64 {
	acc := 1 % m
	for i := begin; ; i++ {
		acc = MulMod(acc, i, m)
		if i == end {
			break
		}
	}
	return acc
}

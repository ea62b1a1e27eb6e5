// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used to size the sample
ring and the FFT. Every function is O(1), allocation free and safe to call
from the audio callback.

Usage:

	// Reject an analysis window that the FFT cannot use
	if !bitint.IsPowerOfTwo(length) {
		hint := bitint.NextPowerOfTwo(length) // 2000 -> 2048
		...
	}

	// Shift amount for a power-of-two length
	shift := bitint.Log2(2048) // 11

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map onto themselves:

	8 -> 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	9 -> 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Sizes <= 0
// yield 1.
//
//	Input  Output
//	0      1
//	5      8
//	2048   2048
//	2049   4096
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single set bit, so clearing the lowest set bit (n & (n-1)) leaves
// zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise. For a power of
// two it is the exact exponent.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}

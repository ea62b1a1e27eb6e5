// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestRingSizes(t *testing.T) {
	tests := []struct {
		n    int
		pow2 bool
		next int
		log2 int
	}{
		{-4, false, 1, -1},
		{0, false, 1, -1},
		{1, true, 1, 0},
		{3, false, 4, 1},
		{4, true, 4, 2},         // smallest analysis length
		{1000, false, 1024, 9},  // window size typed in decimal
		{2048, true, 2048, 11},  // default ring
		{2049, false, 4096, 11}, // one past
		{1 << 16, true, 1 << 16, 16},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.pow2 {
				t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.n, got, tt.pow2)
			}
			if got := NextPowerOfTwo(tt.n); got != tt.next {
				t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.n, got, tt.next)
			}
			if got := Log2(tt.n); got != tt.log2 {
				t.Errorf("Log2(%d) = %d, want %d", tt.n, got, tt.log2)
			}
		})
	}
}

func TestNextPowerOfTwoIsValidRingSize(t *testing.T) {
	for n := 1; n <= 5000; n++ {
		p := NextPowerOfTwo(n)
		if !IsPowerOfTwo(p) || p < n || p >= 2*n {
			t.Fatalf("NextPowerOfTwo(%d) = %d", n, p)
		}
	}
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		IsPowerOfTwo(i & 0xFFF)
		i++
	}
}

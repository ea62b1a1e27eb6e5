// SPDX-License-Identifier: MIT

// Package ring implements the fixed-size circular sample buffer that feeds
// the spectral analyzer. It is owned by a single processing instance and is
// not safe for concurrent use.
package ring

import (
	"errors"
	"fmt"

	"pitchcv/pkg/bitint"
)

// ErrLength is returned by New when the length is not a positive power of
// two.
var ErrLength = errors.New("ring length must be a positive power of two")

// Buffer holds the most recent Len() samples. The write cursor advances
// modulo the length; storage is overwritten in place and never grows.
type Buffer struct {
	data   []float64
	cursor int // next write position, always in [0, len(data))
	lap    int // samples written in the current lap, in [0, len(data)]
}

// New allocates a buffer of length samples, all zero.
func New(length int) (*Buffer, error) {
	if !bitint.IsPowerOfTwo(length) {
		return nil, fmt.Errorf("%w: got %d (nearest is %d)", ErrLength, length, bitint.NextPowerOfTwo(length))
	}
	return &Buffer{data: make([]float64, length)}, nil
}

// Push writes sample at the cursor and advances it with wraparound.
// O(1), no allocation.
func (b *Buffer) Push(sample float64) {
	if b.lap == len(b.data) {
		b.lap = 0
	}
	b.data[b.cursor] = sample
	b.lap++
	// Length is a power of two, so the wrap is a mask.
	b.cursor = (b.cursor + 1) & (len(b.data) - 1)
}

// Samples returns the backing storage in storage order. The slice aliases
// the buffer; callers that need a stable copy must copy it.
func (b *Buffer) Samples() []float64 {
	return b.data
}

// Cursor returns the next write position.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// Lap returns how many samples have been written since the cursor last
// passed index zero: 0 before the first Push, then 1..Len().
func (b *Buffer) Lap() int {
	return b.lap
}

// Len returns the fixed buffer length.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Reset zeroes the storage and rewinds the cursor.
func (b *Buffer) Reset() {
	clear(b.data)
	b.cursor = 0
	b.lap = 0
}

// SPDX-License-Identifier: MIT

/*
Package spectrum turns a snapshot of the sample ring into a magnitude
spectrum for peak picking.

Spectrum layout:

The spectrum has the same length L as the snapshot and follows the packed
layout of an in-place real FFT, with each complex value replaced by its
magnitude:

	slot:   0     1       2     3   4     5   ...  2j    2j+1
	value:  DC=0  |X_L/2| |X_1| 0   |X_2| 0   ...  |X_j| 0

Frequency bin j therefore sits at slot 2j, and a peak found at slot k is
the frequency k * sampleRate / L / 2. The DC slot is always zero so that a
bias on the input cannot win the peak search.

Analyze is allocation free; every buffer is sized once in NewAnalyzer.
*/
package spectrum

import (
	"errors"
	"fmt"
	"math/cmplx"

	applog "pitchcv/internal/log"
	"pitchcv/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrLength is returned when the analysis length is not a power of two
// of at least 4.
var ErrLength = errors.New("analysis length must be a power of two >= 4")

var logger = applog.Named("spectrum")

// Transformer computes the packed magnitude spectrum of windowed samples
// into dst. Both slices have the transformer's length. Implementations
// must not allocate.
type Transformer interface {
	Transform(dst, windowed []float64)
	Len() int
}

// FourierTransform is the Transformer backed by gonum's real FFT.
type FourierTransform struct {
	fft    *fourier.FFT
	length int
	coeffs []complex128 // length/2 + 1 complex bins
}

// Compile-time check for interface implementation.
var _ Transformer = (*FourierTransform)(nil)

// NewFourierTransform prepares a real FFT of the given length.
func NewFourierTransform(length int) (*FourierTransform, error) {
	if !bitint.IsPowerOfTwo(length) || length < 4 {
		return nil, fmt.Errorf("%w: got %d", ErrLength, length)
	}
	return &FourierTransform{
		fft:    fourier.NewFFT(length),
		length: length,
		coeffs: make([]complex128, length/2+1),
	}, nil
}

// Len returns the transform length.
func (f *FourierTransform) Len() int { return f.length }

// Transform runs the forward FFT and packs the magnitudes into dst.
func (f *FourierTransform) Transform(dst, windowed []float64) {
	f.fft.Coefficients(f.coeffs, windowed)

	half := f.length / 2
	dst[0] = cmplx.Abs(f.coeffs[0])
	dst[1] = cmplx.Abs(f.coeffs[half])
	for j := 1; j < half; j++ {
		dst[2*j] = cmplx.Abs(f.coeffs[j])
		dst[2*j+1] = 0
	}
}

// Analyzer windows snapshots and transforms them. It owns its scratch
// buffers and is not safe for concurrent use.
type Analyzer struct {
	transform Transformer
	window    []float64 // precomputed coefficients
	windowFn  WindowFunc
	snapshot  []float64 // windowed copy of the live buffer
	spectrum  []float64 // packed magnitudes, returned by Analyze
}

// NewAnalyzer builds an analyzer using the gonum FFT.
func NewAnalyzer(length int, w WindowFunc) (*Analyzer, error) {
	ft, err := NewFourierTransform(length)
	if err != nil {
		return nil, err
	}
	return NewAnalyzerWithTransform(ft, w), nil
}

// NewAnalyzerWithTransform builds an analyzer around an arbitrary
// Transformer.
func NewAnalyzerWithTransform(t Transformer, w WindowFunc) *Analyzer {
	length := t.Len()
	logger.Debugf("initializing analyzer (Size: %d = 2^%d, Window: %s)", length, bitint.Log2(length), w)
	return &Analyzer{
		transform: t,
		window:    Coefficients(length, w),
		windowFn:  w,
		snapshot:  make([]float64, length),
		spectrum:  make([]float64, length),
	}
}

// Analyze copies samples, applies the window to the copy, transforms it
// and zeroes the DC slot. The returned slice is owned by the analyzer and
// is overwritten by the next call. samples is never modified; if it is
// shorter than the analyzer length the remainder is zero-padded.
func (a *Analyzer) Analyze(samples []float64) []float64 {
	n := copy(a.snapshot, samples)
	clear(a.snapshot[n:])

	for i, w := range a.window {
		a.snapshot[i] *= w
	}

	a.transform.Transform(a.spectrum, a.snapshot)
	a.spectrum[0] = 0 // discard DC

	return a.spectrum
}

// Len returns the analysis length.
func (a *Analyzer) Len() int { return len(a.spectrum) }

// Window returns the configured window function.
func (a *Analyzer) Window() WindowFunc { return a.windowFn }

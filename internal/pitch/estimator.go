// SPDX-License-Identifier: MIT

// Package pitch converts a packed magnitude spectrum into a frequency and
// then into a 1 V/octave control voltage relative to a reference pitch.
package pitch

import (
	"errors"
	"fmt"
	"math"
)

const (
	// FreqC4 is middle C, the 0 V reference of the 1 V/octave standard.
	FreqC4 = 261.6256

	// MinVoltage and MaxVoltage bound every control voltage. Silence and
	// other degenerate input map to MinVoltage.
	MinVoltage = -10.0
	MaxVoltage = 10.0
)

// minRatio is the smallest argument handed to log2: 2^MinVoltage.
var minRatio = math.Exp2(MinVoltage)

var (
	// ErrReferenceFrequency is returned for a non-positive or non-finite reference.
	ErrReferenceFrequency = errors.New("reference frequency must be positive and finite")
	// ErrLength is returned for a spectrum length below 2.
	ErrLength = errors.New("spectrum length must be at least 2")
)

// PeakIndex returns the index of the largest value in spectrum. Ties go to
// the lowest index. An empty or all-zero spectrum yields 0.
func PeakIndex(spectrum []float64) int {
	peak := 0
	for i := 1; i < len(spectrum); i++ {
		if spectrum[i] > spectrum[peak] {
			peak = i
		}
	}
	return peak
}

// FrequencyFromPeak maps a spectrum slot to Hz. Frequency bin j occupies
// slot 2j of the packed spectrum, hence the halving.
func FrequencyFromPeak(peak int, sampleRate float64, length int) float64 {
	return (sampleRate * float64(peak) / float64(length)) / 2
}

// ControlVoltage converts a frequency to volts relative to reference,
// clamped to [MinVoltage, MaxVoltage]. The frequency is halved before the
// ratio is taken, which places the output one octave below a plain
// log2(frequency/reference); see DESIGN.md before changing it.
func ControlVoltage(frequency, reference float64) float64 {
	ratio := (frequency / 2) / reference
	if !(ratio > minRatio) { // also catches NaN
		return MinVoltage
	}
	v := math.Log2(ratio)
	if v > MaxVoltage {
		return MaxVoltage
	}
	return v
}

// Estimate is the result of one analysis cycle.
type Estimate struct {
	Peak      int     // spectrum slot of the peak
	Frequency float64 // Hz, from FrequencyFromPeak
	Voltage   float64 // volts, from ControlVoltage
}

// Estimator holds the fixed parameters of the conversion.
type Estimator struct {
	length    int
	reference float64
}

// NewEstimator returns an estimator for spectra of the given length.
func NewEstimator(length int, reference float64) (*Estimator, error) {
	if length < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrLength, length)
	}
	if !(reference > 0) || math.IsInf(reference, 1) {
		return nil, fmt.Errorf("%w: got %g", ErrReferenceFrequency, reference)
	}
	return &Estimator{length: length, reference: reference}, nil
}

// Estimate picks the peak of spectrum and converts it. It never returns a
// non-finite voltage.
func (e *Estimator) Estimate(spectrum []float64, sampleRate float64) Estimate {
	peak := PeakIndex(spectrum)
	freq := FrequencyFromPeak(peak, sampleRate, e.length)
	return Estimate{
		Peak:      peak,
		Frequency: freq,
		Voltage:   ControlVoltage(freq, e.reference),
	}
}

// Reference returns the 0 V reference frequency.
func (e *Estimator) Reference() float64 { return e.reference }

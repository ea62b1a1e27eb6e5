// SPDX-License-Identifier: MIT

// Package utils holds deterministic test-signal generators shared by the
// tracker tests, the offline renderer and the tone command.
package utils

import "math"

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude, starting at phase zero.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	FillSineWave(buffer, 0, sampleRate, frequency, amplitude)
	return buffer
}

// FillSineWave writes a sine into dst as if dst started at sample offset
// within an endless tone. It never allocates.
func FillSineWave(dst []float64, offset int, sampleRate, frequency, amplitude float64) {
	for i := range dst {
		tm := float64(offset+i) / sampleRate
		dst[i] = amplitude * math.Sin(2*math.Pi*frequency*tm)
	}
}

// GenerateComplexWave returns a harmonic-rich tone: a fundamental plus its
// second and third harmonics at 0.5, 0.3 and 0.2 of amplitude.
func GenerateComplexWave(size int, sampleRate, fundamental, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = amplitude * (math.Sin(2*math.Pi*fundamental*tm)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*tm)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*tm)*0.2)
	}
	return buffer
}

// BinAlignedFrequency returns the frequency of FFT bin for a transform of
// length points, so that a generated tone lands exactly on one bin.
func BinAlignedFrequency(bin int, sampleRate float64, length int) float64 {
	return float64(bin) * sampleRate / float64(length)
}

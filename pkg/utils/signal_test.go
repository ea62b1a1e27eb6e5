// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", testSize, testSampleRate, testFrequency},
		{"Middle C", testSize, testSampleRate, 261.63},
		{"High Sample Rate", testSize, 192000, testFrequency},
		{"Low Sample Rate", testSize, 8000, testFrequency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 1)

			if len(result) != tt.size {
				t.Fatalf("GenerateSineWave() buffer size = %d, want %d", len(result), tt.size)
			}
			if result[0] != 0 {
				t.Errorf("GenerateSineWave() first sample = %f, want 0", result[0])
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < tt.size; i++ {
				if (result[i-1] < 0 && result[i] >= 0) || (result[i-1] >= 0 && result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, 20% margin for phase alignment.
			expectedCrossings := float64(tt.size) / (samplesPerCycle / 2)
			tolerance := 0.2 * expectedCrossings
			if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
				t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
					crossCount, expectedCrossings, tolerance)
			}
		})
	}
}

func TestFillSineWaveContinuesPhase(t *testing.T) {
	whole := GenerateSineWave(200, testSampleRate, testFrequency, 0.8)

	part := make([]float64, 100)
	FillSineWave(part, 100, testSampleRate, testFrequency, 0.8)

	for i := range part {
		if math.Abs(part[i]-whole[100+i]) > 1e-12 {
			t.Fatalf("sample %d: got %f, want %f", i, part[i], whole[100+i])
		}
	}

	allocs := testing.AllocsPerRun(100, func() {
		FillSineWave(part, 0, testSampleRate, testFrequency, 1)
	})
	if allocs > 0 {
		t.Errorf("FillSineWave allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestGenerateComplexWave(t *testing.T) {
	result := GenerateComplexWave(testSize, testSampleRate, testFrequency, 1)
	if len(result) != testSize {
		t.Fatalf("GenerateComplexWave() buffer size = %d, want %d", len(result), testSize)
	}

	var peak float64
	for _, v := range result {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 || peak > 1 {
		t.Errorf("GenerateComplexWave() peak = %f, want within (0, 1]", peak)
	}
}

func TestBinAlignedFrequency(t *testing.T) {
	got := BinAlignedFrequency(20, 48000, 2048)
	if want := 468.75; got != want {
		t.Errorf("BinAlignedFrequency() = %f, want %f", got, want)
	}
}

func BenchmarkFillSineWave(b *testing.B) {
	buf := make([]float64, testSize)
	b.ReportAllocs()
	for b.Loop() {
		FillSineWave(buf, 0, testSampleRate, testFrequency, 1)
	}
}

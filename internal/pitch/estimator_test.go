// SPDX-License-Identifier: MIT
package pitch

import (
	"errors"
	"math"
	"testing"
)

func TestPeakIndex(t *testing.T) {
	tests := []struct {
		desc     string
		spectrum []float64
		want     int
	}{
		{"Empty", nil, 0},
		{"All zero", []float64{0, 0, 0, 0}, 0},
		{"Single peak", []float64{0, 1, 5, 2}, 2},
		{"Tie goes to lowest index", []float64{0, 3, 1, 3}, 1},
		{"Peak at end", []float64{0, 1, 2, 9}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := PeakIndex(tt.spectrum); got != tt.want {
				t.Errorf("PeakIndex(%v) = %d, want %d", tt.spectrum, got, tt.want)
			}
		})
	}
}

func TestFrequencyFromPeak(t *testing.T) {
	// Slot 40 of a 2048 packed spectrum is bin 20: 20 * 44100 / 2048 Hz.
	got := FrequencyFromPeak(40, 44100, 2048)
	want := 20 * 44100.0 / 2048
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("FrequencyFromPeak(40) = %f, want %f", got, want)
	}
	if FrequencyFromPeak(0, 44100, 2048) != 0 {
		t.Error("slot 0 must map to 0 Hz")
	}
}

func TestControlVoltage(t *testing.T) {
	tests := []struct {
		desc      string
		frequency float64
		want      float64
	}{
		{"Two octaves of reference is one volt", 4 * FreqC4, 1},
		{"Double reference is zero volts", 2 * FreqC4, 0},
		{"Reference is minus one volt", FreqC4, -1},
		{"Silence clamps to minimum", 0, MinVoltage},
		{"Negative clamps to minimum", -100, MinVoltage},
		{"NaN clamps to minimum", math.NaN(), MinVoltage},
		{"Huge clamps to maximum", 1e12, MaxVoltage},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := ControlVoltage(tt.frequency, FreqC4)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ControlVoltage(%g) = %f, want %f", tt.frequency, got, tt.want)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Errorf("ControlVoltage(%g) is not finite", tt.frequency)
			}
		})
	}
}

func TestNewEstimatorValidation(t *testing.T) {
	if _, err := NewEstimator(1, FreqC4); !errors.Is(err, ErrLength) {
		t.Errorf("length 1: error = %v, want ErrLength", err)
	}
	for _, ref := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewEstimator(2048, ref); !errors.Is(err, ErrReferenceFrequency) {
			t.Errorf("reference %g: error = %v, want ErrReferenceFrequency", ref, err)
		}
	}
}

func TestEstimate(t *testing.T) {
	e, err := NewEstimator(8, FreqC4)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	if e.Reference() != FreqC4 {
		t.Errorf("Reference() = %f", e.Reference())
	}

	// sampleRate chosen so that slot 4 maps to exactly 4 * C4:
	// 4 * sr / 8 / 2 = 4 * C4  =>  sr = 16 * C4.
	sr := 16 * FreqC4
	est := e.Estimate([]float64{0, 0, 1, 0, 7, 0, 2, 0}, sr)

	if est.Peak != 4 {
		t.Errorf("Peak = %d, want 4", est.Peak)
	}
	if math.Abs(est.Frequency-4*FreqC4) > 1e-9 {
		t.Errorf("Frequency = %f, want %f", est.Frequency, 4*FreqC4)
	}
	if math.Abs(est.Voltage-1) > 1e-9 {
		t.Errorf("Voltage = %f, want 1", est.Voltage)
	}
}

func TestEstimateSilenceIsFinite(t *testing.T) {
	e, _ := NewEstimator(2048, FreqC4)
	est := e.Estimate(make([]float64, 2048), 44100)
	if est.Peak != 0 || est.Frequency != 0 {
		t.Errorf("silence: peak=%d freq=%f, want 0 0", est.Peak, est.Frequency)
	}
	if est.Voltage != MinVoltage {
		t.Errorf("silence: voltage = %f, want %f", est.Voltage, MinVoltage)
	}
}

func TestEstimateNoAllocs(t *testing.T) {
	e, _ := NewEstimator(2048, FreqC4)
	spec := make([]float64, 2048)
	spec[100] = 1
	allocs := testing.AllocsPerRun(100, func() {
		_ = e.Estimate(spec, 48000)
	})
	if allocs > 0 {
		t.Errorf("Estimate allocated: %.1f", allocs)
	}
}

func TestNoteForFrequency(t *testing.T) {
	tests := []struct {
		frequency float64
		want      string
	}{
		{440, "A4 +0c"},
		{FreqC4, "C4 +0c"},
		{247, "B3 +0c"},
		{27.5, "A0 +0c"},
		{452, "A4 +47c"},
		{0, "--"},
		{-5, "--"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := NoteForFrequency(tt.frequency).String(); got != tt.want {
				t.Errorf("NoteForFrequency(%g) = %q, want %q", tt.frequency, got, tt.want)
			}
		})
	}
}

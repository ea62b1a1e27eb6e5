// SPDX-License-Identifier: MIT
package audio

import "math"

// The gate replaces a whole input buffer with silence when its peak on the
// tracked channel is below the threshold. The tracker then sees zeros, so
// its voltage settles at the silence level instead of following noise.

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the gate is active.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled.Load()
}

// SetGateThreshold adjusts the gate threshold in digital full scale, clamped
// to 0.0-1.0 where 0 = always open and 1 = always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	threshold = min(max(threshold, 0), 1)
	e.gateThreshold.Store(math.Float32bits(float32(threshold)))
}

// GetGateThreshold returns the current gate threshold.
func (e *Engine) GetGateThreshold() float64 {
	return float64(math.Float32frombits(e.gateThreshold.Load()))
}

// gateOpen reports whether the buffer passes the gate. Frames are
// interleaved with the given stride and only channel 0 is measured.
func (e *Engine) gateOpen(in []float32, stride int) bool {
	if !e.gateEnabled.Load() {
		return true
	}
	return peakAmplitude(in, stride) >= math.Float32frombits(e.gateThreshold.Load())
}

// peakAmplitude returns the largest absolute sample on channel 0.
func peakAmplitude(in []float32, stride int) float32 {
	var peak float32
	for i := 0; i < len(in); i += stride {
		s := in[i]
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

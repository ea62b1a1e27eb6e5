// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"testing"
)

func TestGateEnableDisable(t *testing.T) {
	engine := &Engine{}

	if engine.GateEnabled() {
		t.Error("Gate should be disabled initially")
	}

	engine.EnableGate()
	engine.EnableGate() // Multiple calls should be idempotent
	if !engine.GateEnabled() {
		t.Error("Gate should be enabled after EnableGate()")
	}

	engine.DisableGate()
	engine.DisableGate()
	if engine.GateEnabled() {
		t.Error("Gate should be disabled after DisableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},
		{0.001, 0.001},
		{0.5, 0.5},
		{1.0, 1.0},
		{1.5, 1.0}, // Above max
	}

	engine := &Engine{}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.3f", tt.input), func(t *testing.T) {
			engine.SetGateThreshold(tt.input)
			if got := engine.GetGateThreshold(); math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("threshold = %.6f, want %.6f", got, tt.expected)
			}
		})
	}
}

func TestPeakAmplitude(t *testing.T) {
	tests := []struct {
		desc   string
		in     []float32
		stride int
		want   float32
	}{
		{"Empty", nil, 1, 0},
		{"Mono negative peak", []float32{0.1, -0.7, 0.3}, 1, 0.7},
		{"Stereo ignores right", []float32{0.2, 0.9, -0.4, -0.95}, 2, 0.4},
		{"Four channels", []float32{0.5, 1, 1, 1, 0.25, 1, 1, 1}, 4, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := peakAmplitude(tt.in, tt.stride); got != tt.want {
				t.Errorf("peakAmplitude = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGateOpen(t *testing.T) {
	engine := &Engine{}
	engine.SetGateThreshold(0.1)
	quiet := []float32{0.05, -0.05}
	loud := []float32{0.05, -0.2}

	if !engine.gateOpen(quiet, 1) {
		t.Error("disabled gate must always be open")
	}
	engine.EnableGate()
	if engine.gateOpen(quiet, 1) {
		t.Error("quiet buffer should be gated")
	}
	if !engine.gateOpen(loud, 1) {
		t.Error("loud buffer should pass")
	}
}

func TestGateHotPath(t *testing.T) {
	buffer := make([]float32, 1024)
	for i := range buffer {
		buffer[i] = float32(i%100) / 100
	}
	engine := &Engine{}
	engine.EnableGate()
	engine.SetGateThreshold(0.5)

	allocs := testing.AllocsPerRun(100, func() {
		_ = engine.gateOpen(buffer, 1)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in noise gate hot path, got %.1f", allocs)
	}
}

func BenchmarkGate(b *testing.B) {
	buffer := make([]float32, 1024)
	for i := range buffer {
		buffer[i] = float32(i%100) / 100
	}
	engine := &Engine{}
	engine.EnableGate()
	engine.SetGateThreshold(0.5)

	for b.Loop() {
		_ = engine.gateOpen(buffer, 2)
	}
}

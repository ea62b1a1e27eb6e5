// SPDX-License-Identifier: MIT

/*
Package tracker is the per-sample pitch-tracking core.

Each call to Process is one tick:

	sample -> ring.Push
	       -> (lap position % AnalysisInterval == 0)
	              analyzer.Analyze -> estimator.Estimate -> output.Update
	       -> output.Held               => Output.ControlVoltage
	dt     -> indicator.Advance         => Output.Indicator

The spectral path is the only expensive step and runs once every
AnalysisInterval samples; every other tick only writes one sample and
re-emits the held voltage.

Real-time notes:
  - Process never allocates, blocks or returns an error
  - all buffers are sized in New
  - a Tracker is owned by one goroutine (the audio callback)
*/
package tracker

import (
	"errors"
	"fmt"
	"math"

	applog "pitchcv/internal/log"
	"pitchcv/internal/pitch"
	"pitchcv/internal/ring"
	"pitchcv/internal/spectrum"
	"pitchcv/pkg/bitint"
)

// Default configuration.
const (
	DefaultBufferLength       = 2048
	DefaultAnalysisInterval   = 100
	DefaultReferenceFrequency = pitch.FreqC4
	DefaultIndicatorPeriod    = 1.0 // seconds
)

var (
	ErrBufferLength       = errors.New("buffer length must be a power of two >= 4")
	ErrAnalysisInterval   = errors.New("analysis interval must be positive")
	ErrReferenceFrequency = errors.New("reference frequency must be positive")
	ErrIndicatorPeriod    = errors.New("indicator period must be positive")
	ErrSmoothing          = errors.New("smoothing must be 0 (off) or in (0, 1]")
)

var logger = applog.Named("tracker")

// Config is fixed at construction.
type Config struct {
	BufferLength       int                 // ring and FFT length, power of two
	AnalysisInterval   int                 // ticks between analysis cycles
	ReferenceFrequency float64             // Hz at which the output is -1 V (see pitch.ControlVoltage)
	IndicatorPeriod    float64             // seconds per indicator on/off cycle
	Window             spectrum.WindowFunc // taper applied before the FFT
	Smoothing          float64             // 0 disables, else EMA weight of the new value
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		BufferLength:       DefaultBufferLength,
		AnalysisInterval:   DefaultAnalysisInterval,
		ReferenceFrequency: DefaultReferenceFrequency,
		IndicatorPeriod:    DefaultIndicatorPeriod,
		Window:             spectrum.Hann,
	}
}

// Validate checks the construction preconditions.
func (c Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.BufferLength) || c.BufferLength < 4 {
		return fmt.Errorf("%w: got %d (nearest is %d)", ErrBufferLength, c.BufferLength, bitint.NextPowerOfTwo(c.BufferLength))
	}
	if c.AnalysisInterval <= 0 {
		return fmt.Errorf("%w: got %d", ErrAnalysisInterval, c.AnalysisInterval)
	}
	if !(c.ReferenceFrequency > 0) {
		return fmt.Errorf("%w: got %g", ErrReferenceFrequency, c.ReferenceFrequency)
	}
	if !(c.IndicatorPeriod > 0) {
		return fmt.Errorf("%w: got %g", ErrIndicatorPeriod, c.IndicatorPeriod)
	}
	if c.Smoothing < 0 || c.Smoothing > 1 {
		return fmt.Errorf("%w: got %g", ErrSmoothing, c.Smoothing)
	}
	return nil
}

// Input is one tick's worth of input.
type Input struct {
	Sample     float64 // raw input sample (volts or normalised audio)
	SampleRate float64 // Hz
	TimeStep   float64 // seconds since the previous tick, normally 1/SampleRate
}

// Output is what the tracker emits every tick.
type Output struct {
	ControlVoltage float64 // volts, 1 V/octave
	Indicator      float64 // 0 or 1
}

// Reading is a snapshot of the tracker for observers outside the audio
// thread.
type Reading struct {
	ControlVoltage float64 `json:"cv"`
	Indicator      float64 `json:"indicator"`
	Frequency      float64 `json:"frequency"` // Hz from the last analysis
	Peak           int     `json:"peak"`      // spectrum slot of the last analysis
	Analyses       uint64  `json:"analyses"`
	Ticks          uint64  `json:"ticks"`
}

// Tracker is the processing core. It is not safe for concurrent use.
type Tracker struct {
	config    Config
	ring      *ring.Buffer
	analyzer  *spectrum.Analyzer
	estimator *pitch.Estimator
	output    *OutputStage
	indicator *Indicator

	last     pitch.Estimate
	lastOut  Output
	analyses uint64
	ticks    uint64
}

// New validates cfg and preallocates every buffer.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}

	buf, err := ring.New(cfg.BufferLength)
	if err != nil {
		return nil, err
	}
	analyzer, err := spectrum.NewAnalyzer(cfg.BufferLength, cfg.Window)
	if err != nil {
		return nil, err
	}
	estimator, err := pitch.NewEstimator(cfg.BufferLength, cfg.ReferenceFrequency)
	if err != nil {
		return nil, err
	}
	indicator, err := NewIndicator(cfg.IndicatorPeriod)
	if err != nil {
		return nil, err
	}

	smooth := Smoother(NoSmoothing)
	if cfg.Smoothing > 0 {
		if smooth, err = ExponentialSmoother(cfg.Smoothing); err != nil {
			return nil, err
		}
	}

	logger.Infof("initialized (Buffer: %d, Interval: %d ticks, Reference: %.4f Hz, Window: %s, Smoothing: %g)",
		cfg.BufferLength, cfg.AnalysisInterval, cfg.ReferenceFrequency, cfg.Window, cfg.Smoothing)

	return &Tracker{
		config:    cfg,
		ring:      buf,
		analyzer:  analyzer,
		estimator: estimator,
		output:    NewOutputStage(smooth),
		indicator: indicator,
	}, nil
}

// Process runs one tick.
func (t *Tracker) Process(in Input) Output {
	t.ticks++
	t.ring.Push(in.Sample)

	if t.ring.Lap()%t.config.AnalysisInterval == 0 {
		t.analyze(in.SampleRate)
	}

	t.lastOut = Output{
		ControlVoltage: t.output.Held(),
		Indicator:      t.indicator.Advance(in.TimeStep),
	}
	return t.lastOut
}

// analyze is the rate-limited spectral path.
func (t *Tracker) analyze(sampleRate float64) {
	spec := t.analyzer.Analyze(t.ring.Samples())
	t.last = t.estimator.Estimate(spec, sampleRate)
	t.output.Update(t.last.Voltage)
	t.analyses++

	if applog.Enabled(applog.LevelDebug) && t.analyses%500 == 0 {
		logger.Debugf("analysis %d: peak=%d freq=%.2f Hz cv=%.3f V", t.analyses, t.last.Peak, t.last.Frequency, t.output.Held())
	}
}

// ProcessBlock runs Process for each sample with a constant sample rate,
// writing voltages and indicator values into cv and light when they are
// non-nil. Both must be at least len(samples) long when given.
func (t *Tracker) ProcessBlock(samples []float64, sampleRate float64, cv, light []float64) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 1) {
		return
	}
	dt := 1 / sampleRate
	for i, s := range samples {
		out := t.Process(Input{Sample: s, SampleRate: sampleRate, TimeStep: dt})
		if cv != nil {
			cv[i] = out.ControlVoltage
		}
		if light != nil {
			light[i] = out.Indicator
		}
	}
}

// Reading returns a snapshot of the last tick.
func (t *Tracker) Reading() Reading {
	return Reading{
		ControlVoltage: t.lastOut.ControlVoltage,
		Indicator:      t.lastOut.Indicator,
		Frequency:      t.last.Frequency,
		Peak:           t.last.Peak,
		Analyses:       t.analyses,
		Ticks:          t.ticks,
	}
}

// Config returns the construction config.
func (t *Tracker) Config() Config { return t.config }

// Reset clears the ring, the held voltage, the indicator and counters.
func (t *Tracker) Reset() {
	t.ring.Reset()
	t.output.Reset()
	t.indicator.Reset()
	t.last = pitch.Estimate{}
	t.lastOut = Output{}
	t.analyses = 0
	t.ticks = 0
}

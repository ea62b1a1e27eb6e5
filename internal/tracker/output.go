// SPDX-License-Identifier: MIT
package tracker

import (
	"fmt"
	"math"
)

// Smoother maps the held voltage and a freshly computed one to the value
// that gets stored. It must be pure and allocation free.
type Smoother func(held, next float64) float64

// NoSmoothing stores every new estimate as is: stepwise updates.
func NoSmoothing(_, next float64) float64 { return next }

// ExponentialSmoother returns an exponential moving average with weight
// alpha on the new value. alpha must be in (0, 1]; 1 is NoSmoothing.
func ExponentialSmoother(alpha float64) (Smoother, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("%w: got %g", ErrSmoothing, alpha)
	}
	if alpha == 1 {
		return NoSmoothing, nil
	}
	return func(held, next float64) float64 {
		return alpha*next + (1-alpha)*held
	}, nil
}

// OutputStage holds the last control voltage between analysis cycles.
type OutputStage struct {
	held   float64
	smooth Smoother
}

// NewOutputStage starts holding 0 V. A nil smoother means NoSmoothing.
func NewOutputStage(smooth Smoother) *OutputStage {
	if smooth == nil {
		smooth = NoSmoothing
	}
	return &OutputStage{smooth: smooth}
}

// Held returns the value emitted on every tick.
func (o *OutputStage) Held() float64 {
	return o.held
}

// Update runs next through the smoother and stores the result. A
// non-finite result leaves the held value unchanged.
func (o *OutputStage) Update(next float64) float64 {
	v := o.smooth(o.held, next)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return o.held
	}
	o.held = v
	return v
}

// Reset returns to 0 V.
func (o *OutputStage) Reset() {
	o.held = 0
}

// Indicator is a free-running square wave: on for the first half of each
// period, off for the second.
type Indicator struct {
	phase  float64 // [0, period)
	period float64
}

// NewIndicator returns an indicator with the given period in seconds.
func NewIndicator(period float64) (*Indicator, error) {
	if !(period > 0) || math.IsInf(period, 1) {
		return nil, fmt.Errorf("%w: got %g", ErrIndicatorPeriod, period)
	}
	return &Indicator{period: period}, nil
}

// Advance moves the phase by dt and returns the brightness, 1 or 0.
func (ind *Indicator) Advance(dt float64) float64 {
	ind.phase += dt
	if ind.phase >= ind.period {
		ind.phase -= ind.period
		// A step longer than a whole period still lands inside [0, period).
		if ind.phase >= ind.period {
			ind.phase = math.Mod(ind.phase, ind.period)
		}
	}
	return ind.Brightness()
}

// Brightness reports the current output without advancing.
func (ind *Indicator) Brightness() float64 {
	if ind.phase < ind.period/2 {
		return 1
	}
	return 0
}

// Phase returns the accumulator, in [0, period).
func (ind *Indicator) Phase() float64 { return ind.phase }

// Reset rewinds the phase to zero.
func (ind *Indicator) Reset() { ind.phase = 0 }

// SPDX-License-Identifier: MIT
package config

import (
	"fmt"

	applog "pitchcv/internal/log"
	"pitchcv/internal/spectrum"
	"pitchcv/internal/tracker"
)

// TrackerSettings converts the tracker section into a validated
// tracker.Config.
func (c *Config) TrackerSettings() (tracker.Config, error) {
	window, err := spectrum.ParseWindowFunc(c.Tracker.Window)
	if err != nil {
		return tracker.Config{}, fmt.Errorf("tracker.window: %w", err)
	}

	tc := tracker.Config{
		BufferLength:       c.Tracker.BufferLength,
		AnalysisInterval:   c.Tracker.AnalysisInterval,
		ReferenceFrequency: c.Tracker.ReferenceFrequency,
		IndicatorPeriod:    c.Tracker.IndicatorPeriod,
		Window:             window,
		Smoothing:          c.Tracker.Smoothing,
	}
	if err := tc.Validate(); err != nil {
		return tracker.Config{}, fmt.Errorf("tracker: %w", err)
	}
	return tc, nil
}

// Level returns the parsed log level, Info when unrecognised.
func (c *Config) Level() applog.LogLevel {
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}


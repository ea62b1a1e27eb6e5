// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	applog "pitchcv/internal/log"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is searched for in the working directory when no path
// is given.
const DefaultConfigFile = "pitchcv.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches DefaultConfigFile and falls back to built-in defaults
// when it is absent. Environment overrides are applied after the file and
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section. Tracker preconditions are delegated to
// tracker.Config.Validate so there is a single source of truth.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	// Audio
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames))
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio device ids must be >= %d", MinDeviceID))
	}
	if c.Audio.InputChannels < 1 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be >= 1, got %d", c.Audio.InputChannels))
	}
	if c.Audio.OutputChannels < 0 || c.Audio.OutputChannels > 2 {
		errs = append(errs, fmt.Errorf("audio.output_channels must be 0, 1 or 2, got %d", c.Audio.OutputChannels))
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.gate_threshold must be in [0, 1], got %g", c.Audio.GateThreshold))
	}
	if !(c.Audio.CVScale > 0) {
		errs = append(errs, fmt.Errorf("audio.cv_scale must be positive, got %g", c.Audio.CVScale))
	}

	// Tracker
	if _, err := c.TrackerSettings(); err != nil {
		errs = append(errs, err)
	}

	// Recording
	if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth))
	}

	// Transport
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			errs = append(errs, errors.New("transport.udp_target_address must be set when UDP is enabled"))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		errs = append(errs, errors.New("transport.websocket_address must be set when the WebSocket is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the loaded file.
// Malformed values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}

	// ENV_TRACKER_{...}

	// ENV_TRACKER_BUFFER_LENGTH
	if val, ok := os.LookupEnv("ENV_TRACKER_BUFFER_LENGTH"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tracker.BufferLength = n
		} else {
			applog.Warnf("config: ignoring ENV_TRACKER_BUFFER_LENGTH=%q: %v", val, err)
		}
	}
	// ENV_TRACKER_ANALYSIS_INTERVAL
	if val, ok := os.LookupEnv("ENV_TRACKER_ANALYSIS_INTERVAL"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tracker.AnalysisInterval = n
		} else {
			applog.Warnf("config: ignoring ENV_TRACKER_ANALYSIS_INTERVAL=%q: %v", val, err)
		}
	}
	// ENV_TRACKER_SMOOTHING
	if val, ok := os.LookupEnv("ENV_TRACKER_SMOOTHING"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Tracker.Smoothing = f
		} else {
			applog.Warnf("config: ignoring ENV_TRACKER_SMOOTHING=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		} else {
			applog.Warnf("config: ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = b
		}
	}
}

// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"pitchcv/internal/pitch"
	"pitchcv/internal/tracker"
)

// Core configuration constants that define the boundaries and defaults
// for the pitch tracker and its audio plumbing.
const (
	// Audio device defaults
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultInputChannels   = 1           // Mono input, channel 0 is tracked
	DefaultOutputChannels  = 0           // No CV output unless asked for
	DefaultGateEnabled     = false       // Every sample reaches the tracker
	DefaultGateThreshold   = 0.001       // ~-60 dBFS when the gate is on
	DefaultCVScale         = 0.1         // 10 V = digital full scale

	// Tracker defaults
	DefaultBufferLength       = tracker.DefaultBufferLength
	DefaultAnalysisInterval   = tracker.DefaultAnalysisInterval
	DefaultReferenceFrequency = pitch.FreqC4
	DefaultIndicatorPeriod    = tracker.DefaultIndicatorPeriod
	DefaultWindow             = "Hann"
	DefaultSmoothing          = 0.0 // Stepwise updates

	// Recording defaults
	DefaultRecordingBitDepth = 16

	// Transport defaults
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddress = ":8080"

	DefaultLogLevel = "info"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
)

// Config is the application configuration, loaded from YAML and then
// overridden by environment variables and command line flags.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Audio     AudioConfig     `yaml:"audio"`     // Device and stream settings.
	Tracker   TrackerConfig   `yaml:"tracker"`   // Pitch tracker settings.
	Recording RecordingConfig `yaml:"recording"` // CV recording settings.
	Transport TransportConfig `yaml:"transport"` // Reading publication settings.
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for input (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for CV output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	InputChannels   int     `yaml:"input_channels"`    // Channels captured; channel 0 feeds the tracker.
	OutputChannels  int     `yaml:"output_channels"`   // 0 = none, 1 = CV, 2 = CV + indicator.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Zero input buffers whose peak is below the threshold.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Gate threshold in digital full scale (0-1).
	CVScale         float64 `yaml:"cv_scale"`          // Volts to full-scale factor for CV output and recordings.
}

// TrackerConfig mirrors tracker.Config in file form.
type TrackerConfig struct {
	BufferLength       int     `yaml:"buffer_length"`       // Ring/FFT length, power of two.
	AnalysisInterval   int     `yaml:"analysis_interval"`   // Samples between analyses.
	ReferenceFrequency float64 `yaml:"reference_frequency"` // Hz.
	IndicatorPeriod    float64 `yaml:"indicator_period"`    // Seconds.
	Window             string  `yaml:"window"`              // Hann, Hamming, Blackman, ...
	Smoothing          float64 `yaml:"smoothing"`           // 0 = off, else EMA weight in (0, 1].
}

// RecordingConfig holds settings for recording the CV output to WAV.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record CV and indicator while running live.
	OutputFile string `yaml:"output_file"` // Empty generates cv-DD-MM-YYYY-HHMMSS.wav.
	BitDepth   int    `yaml:"bit_depth"`   // 16 or 24.
}

// TransportConfig holds settings for publishing readings.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send reading packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port of the receiver.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast readings as JSON.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address, e.g. ":8080".
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
			OutputChannels:  DefaultOutputChannels,
			GateEnabled:     DefaultGateEnabled,
			GateThreshold:   DefaultGateThreshold,
			CVScale:         DefaultCVScale,
		},
		Tracker: TrackerConfig{
			BufferLength:       DefaultBufferLength,
			AnalysisInterval:   DefaultAnalysisInterval,
			ReferenceFrequency: DefaultReferenceFrequency,
			IndicatorPeriod:    DefaultIndicatorPeriod,
			Window:             DefaultWindow,
			Smoothing:          DefaultSmoothing,
		},
		Recording: RecordingConfig{
			BitDepth: DefaultRecordingBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

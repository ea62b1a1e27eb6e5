// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"time"

	"pitchcv/internal/build"
	"pitchcv/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands main dispatches on. An empty Command means cobra already did
// everything (help, version).
const (
	CommandRun    = "run"
	CommandList   = "list"
	CommandRender = "render"
	CommandTone   = "tone"
)

// Options is the parsed command line.
type Options struct {
	Command    string
	Args       []string
	ConfigPath string
	TUI        bool
	Pick       bool
	Verbose    bool

	// render
	Channel int

	// tone
	Frequency float64
	Amplitude float64
	Duration  time.Duration

	overrides []func(*config.Config)
}

// Apply writes the flags the user set on top of cfg and validates the
// result. Flags left at their defaults do not touch the file's values.
func (o *Options) Apply(cfg *config.Config) error {
	for _, fn := range o.overrides {
		fn(cfg)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// flagValues holds raw flag values until we know which ones were set.
type flagValues struct {
	deviceID        int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	inputChannels   int
	outputChannels  int
	gate            bool
	gateThreshold   float64
	cvScale         float64

	bufferLength     int
	analysisInterval int
	reference        float64
	window           string
	smoothing        float64

	record     bool
	outputFile string
	bitDepth   int

	udp       bool
	udpTarget string
	websocket bool
	wsAddress string
}

// collect turns every changed flag into an override.
func (o *Options) collect(flags *pflag.FlagSet, v *flagValues) {
	set := func(name string, fn func(*config.Config)) {
		if flags.Changed(name) {
			o.overrides = append(o.overrides, fn)
		}
	}

	set("device", func(c *config.Config) { c.Audio.InputDevice = v.deviceID })
	set("output-device", func(c *config.Config) { c.Audio.OutputDevice = v.outputDevice })
	set("sample-rate", func(c *config.Config) { c.Audio.SampleRate = v.sampleRate })
	set("frames-per-buffer", func(c *config.Config) { c.Audio.FramesPerBuffer = v.framesPerBuffer })
	set("low-latency", func(c *config.Config) { c.Audio.LowLatency = v.lowLatency })
	set("channels", func(c *config.Config) { c.Audio.InputChannels = v.inputChannels })
	set("output-channels", func(c *config.Config) { c.Audio.OutputChannels = v.outputChannels })
	set("gate", func(c *config.Config) { c.Audio.GateEnabled = v.gate })
	set("gate-threshold", func(c *config.Config) { c.Audio.GateThreshold = v.gateThreshold })
	set("cv-scale", func(c *config.Config) { c.Audio.CVScale = v.cvScale })

	set("buffer-length", func(c *config.Config) { c.Tracker.BufferLength = v.bufferLength })
	set("interval", func(c *config.Config) { c.Tracker.AnalysisInterval = v.analysisInterval })
	set("reference", func(c *config.Config) { c.Tracker.ReferenceFrequency = v.reference })
	set("window", func(c *config.Config) { c.Tracker.Window = v.window })
	set("smoothing", func(c *config.Config) { c.Tracker.Smoothing = v.smoothing })

	set("record", func(c *config.Config) { c.Recording.Enabled = v.record })
	set("output", func(c *config.Config) { c.Recording.OutputFile = v.outputFile })
	set("bit-depth", func(c *config.Config) { c.Recording.BitDepth = v.bitDepth })

	set("udp", func(c *config.Config) { c.Transport.UDPEnabled = v.udp })
	set("udp-target", func(c *config.Config) { c.Transport.UDPTargetAddress = v.udpTarget })
	set("websocket", func(c *config.Config) { c.Transport.WebSocketEnabled = v.websocket })
	set("ws-address", func(c *config.Config) { c.Transport.WebSocketAddress = v.wsAddress })
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{TUI: true}
	values := &flagValues{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			options.collect(cmd.Flags(), values)
		},
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandRun
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	})

	// Render command
	renderCmd := &cobra.Command{
		Use:   "render IN.wav OUT.wav",
		Short: "Track a WAV file offline and write the CV and indicator as a stereo WAV",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandRender
			options.Args = args
		},
	}
	renderCmd.Flags().IntVar(&options.Channel, "channel", 0,
		"Input channel fed to the tracker")
	rootCmd.AddCommand(renderCmd)

	// Tone command
	toneCmd := &cobra.Command{
		Use:   "tone OUT.wav",
		Short: "Write a sine test tone at the configured sample rate",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandTone
			options.Args = args
		},
	}
	toneCmd.Flags().Float64VarP(&options.Frequency, "frequency", "f", 440, "Tone frequency in Hz")
	toneCmd.Flags().Float64Var(&options.Amplitude, "amplitude", 0.5, "Peak amplitude (0-1)")
	toneCmd.Flags().DurationVar(&options.Duration, "duration", 2*time.Second, "Tone length")
	rootCmd.AddCommand(toneCmd)

	flags := rootCmd.PersistentFlags()

	// General
	flags.StringVarP(&options.ConfigPath, "config", "C", "",
		"YAML configuration file (default ./"+config.DefaultConfigFile+" when present)")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Live run
	rootCmd.Flags().BoolVarP(&options.TUI, "tui", "t", true,
		"Show the live monitor (--tui=false logs until interrupted)")
	rootCmd.Flags().BoolVarP(&options.Pick, "pick", "p", false,
		"Choose the input device and sample rate interactively")

	// Audio Device Configuration
	flags.IntVarP(&values.deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	flags.IntVar(&values.outputDevice, "output-device", config.DefaultDeviceID,
		"Output device ID for CV output")
	flags.Float64VarP(&values.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&values.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&values.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	flags.IntVarP(&values.inputChannels, "channels", "c", config.DefaultInputChannels,
		"Number of input channels to open; channel 0 is tracked")
	flags.IntVar(&values.outputChannels, "output-channels", config.DefaultOutputChannels,
		"Output channels: 0 none, 1 CV, 2 CV and indicator")
	flags.BoolVarP(&values.gate, "gate", "g", config.DefaultGateEnabled,
		"Silence input buffers below the gate threshold")
	flags.Float64Var(&values.gateThreshold, "gate-threshold", config.DefaultGateThreshold,
		"Gate threshold in digital full scale (0-1)")
	flags.Float64Var(&values.cvScale, "cv-scale", config.DefaultCVScale,
		"Digital full scale per volt for CV output and WAV files")

	// Tracker Configuration
	flags.IntVar(&values.bufferLength, "buffer-length", config.DefaultBufferLength,
		"Analysis buffer length in samples (power of two)")
	flags.IntVar(&values.analysisInterval, "interval", config.DefaultAnalysisInterval,
		"Samples between analyses")
	flags.Float64Var(&values.reference, "reference", config.DefaultReferenceFrequency,
		"Frequency in Hz that maps to 0 V")
	flags.StringVarP(&values.window, "window", "w", config.DefaultWindow,
		"Analysis window (Hann, Hamming, Blackman, ...)")
	flags.Float64Var(&values.smoothing, "smoothing", config.DefaultSmoothing,
		"CV smoothing weight in (0, 1]; 0 holds each estimate unchanged")

	// Recording Configuration
	flags.BoolVarP(&values.record, "record", "r", false,
		"Record the CV and indicator to a WAV file")
	flags.StringVarP(&values.outputFile, "output", "o", "",
		"Recording file name. Default is cv-DD-MM-YYYY-HHMMSS.wav")
	flags.IntVar(&values.bitDepth, "bit-depth", config.DefaultRecordingBitDepth,
		"Bit depth of written WAV files (16 or 24)")

	// Transport Configuration
	flags.BoolVar(&values.udp, "udp", false,
		"Send reading packets over UDP")
	flags.StringVar(&values.udpTarget, "udp-target", config.DefaultUDPTargetAddress,
		"UDP receiver host:port")
	flags.BoolVar(&values.websocket, "websocket", false,
		"Broadcast readings as JSON over a WebSocket")
	flags.StringVar(&values.wsAddress, "ws-address", config.DefaultWebSocketAddress,
		"WebSocket listen address")

	// Execute the CLI. cobra reads os.Args when given nil.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"pitchcv/cmd"
	"pitchcv/internal/audio"
	"pitchcv/internal/build"
	"pitchcv/internal/config"
	applog "pitchcv/internal/log"
	"pitchcv/internal/tracker"
	"pitchcv/internal/transport"
	"pitchcv/internal/transport/udp"
	"pitchcv/internal/tui"
)

// logEvery is how many buffers the logging transport skips between lines.
const logEvery = 100

// main is the entry point for the pitch tracker.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands (list, render, tone) if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the audio engine and its input stream
//   - Publish readings over the configured transports
//   - Show the monitor or wait for a signal
//
// 3. Shutdown Phase (Cold Path):
//   - Stop publishing and recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	// One thread for the audio callback, one for UI and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if opts.Command == "" {
		return
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if err := opts.Apply(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
	applog.SetLevel(cfg.Level())

	switch opts.Command {
	case cmd.CommandList:
		err = listDevices()
	case cmd.CommandRender:
		err = render(cfg, opts)
	case cmd.CommandTone:
		err = tone(cfg, opts)
	case cmd.CommandRun:
		err = run(cfg, opts)
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

func render(cfg *config.Config, opts *cmd.Options) error {
	tr, err := newTracker(cfg)
	if err != nil {
		return err
	}

	in, out := opts.Args[0], opts.Args[1]
	summary, err := audio.RenderFile(in, out, tr, audio.RenderOptions{
		CVScale:  cfg.Audio.CVScale,
		BitDepth: cfg.Recording.BitDepth,
		Channel:  opts.Channel,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %s -> %s\n", in, out)
	fmt.Printf("  %d frames at %d Hz (%s)\n", summary.Frames, summary.SampleRate, summary.Duration)
	fmt.Printf("  %d analyses, %d CV changes\n", summary.Analyses, summary.Changes)
	fmt.Printf("  CV range %+.3f V .. %+.3f V, final %+.3f V\n", summary.MinCV, summary.MaxCV, summary.FinalCV)
	return nil
}

func tone(cfg *config.Config, opts *cmd.Options) error {
	path := opts.Args[0]
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	rate := int(cfg.Audio.SampleRate)
	if err := audio.WriteTone(f, rate, opts.Frequency, opts.Amplitude, opts.Duration, cfg.Recording.BitDepth); err != nil {
		return err
	}
	fmt.Printf("Wrote %.2f Hz tone (%s, %d Hz) to %s\n", opts.Frequency, opts.Duration, rate, path)
	return nil
}

func newTracker(cfg *config.Config) (*tracker.Tracker, error) {
	settings, err := cfg.TrackerSettings()
	if err != nil {
		return nil, err
	}
	return tracker.New(settings)
}

// run is the live path: PortAudio stream, transports, monitor.
func run(cfg *config.Config, opts *cmd.Options) (err error) {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.Pick {
		devices, err := audio.HostDevices()
		if err != nil {
			return err
		}
		sel, err := tui.PickDevice(devices)
		if err != nil {
			return err
		}
		if !sel.OK {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	tr, err := newTracker(cfg)
	if err != nil {
		return err
	}

	sinks := transport.Multi{}
	if cfg.Transport.WebSocketEnabled {
		sinks = append(sinks, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress))
	}
	if len(sinks) == 0 && applog.Enabled(applog.LevelDebug) {
		sinks = append(sinks, transport.NewLoggingTransport(logEvery))
	}
	defer func() { err = errors.Join(err, sinks.Close()) }()

	var pub transport.Transport
	if len(sinks) > 0 {
		pub = sinks
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	engine, err := audio.NewEngine(cfg, tr, pub)
	if err != nil {
		return err
	}

	// The first call to StartInputStream makes PortAudio start calling
	// the callback, which is the start of the hot path.
	if err := engine.StartInputStream(); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, engine.Close()) }()

	if cfg.Transport.UDPEnabled {
		publisher, udpErr := startUDP(cfg, engine)
		if udpErr != nil {
			return udpErr
		}
		defer func() { err = errors.Join(err, publisher.Close()) }()
	}

	if cfg.Recording.Enabled {
		file := cfg.Recording.OutputFile
		if file == "" {
			file = audio.RecordingFilename(time.Now().UTC())
		}
		if err := engine.StartRecording(file); err != nil {
			return err
		}
		defer func() {
			if stopErr := engine.StopRecording(); stopErr != nil {
				err = errors.Join(err, stopErr)
				return
			}
			fmt.Printf("\nRecording saved to: %s\n", file)
		}()
	}

	if opts.TUI {
		title := fmt.Sprintf("%s %s", build.GetBuildFlags().Name, build.GetBuildFlags().Version)
		return tui.RunMonitor(engine, title, tui.DefaultRefresh)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	applog.Infof("tracking, press Ctrl+C to stop")
	<-ctx.Done()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	r := engine.Latest()
	applog.Infof("stopped after %d buffers, %d analyses, last CV %+.3f V", engine.Buffers(), r.Analyses, r.ControlVoltage)
	return nil
}

func startUDP(cfg *config.Config, provider transport.ReadingProvider) (*udp.Publisher, error) {
	sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, provider)
	if err != nil {
		return nil, errors.Join(err, sender.Close())
	}
	publisher.Start()
	return publisher, nil
}

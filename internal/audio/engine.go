// SPDX-License-Identifier: MIT
/*
Package audio connects the pitch tracker to the outside world:
  - live capture through PortAudio, one Tracker.Process call per frame
  - optional duplex output of the CV and indicator on output channels
  - noise gate, WAV recording of the CV pair, offline WAV rendering

Real-time rules for the stream callback:
  - only preallocated buffers are touched per frame
  - recording happens once per buffer
  - publication is handed to a goroutine with a non-blocking signal
  - controls (gate, recording) are atomics read by the callback
*/
package audio

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"pitchcv/internal/config"
	applog "pitchcv/internal/log"
	"pitchcv/internal/tracker"
	"pitchcv/internal/transport"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var logger = applog.Named("engine")

type Engine struct {
	config  *config.Config
	tracker *tracker.Tracker
	publish transport.Transport // nil disables publication

	// Stream handling.
	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream
	inChannels    int
	outChannels   int
	sampleRate    float64
	timeStep      float64
	cvScale       float64

	// Per-buffer tracker output, reused by recording.
	cvBuf    []float64
	lightBuf []float64

	// Noise gate.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint32 // float32 bits, digital full scale

	// Latest reading for pull-based observers.
	mu      sync.RWMutex
	latest  tracker.Reading
	buffers atomic.Uint64

	// Publication. notify holds at most one pending wakeup, so a slow
	// transport sees the newest reading and skips the ones in between.
	notify    chan struct{}
	pubQuit   chan struct{}
	pubDone   chan struct{}
	pubOnce   sync.Once
	pubActive bool

	// Recording state. recMu is held by the callback while it encodes and
	// by Start/StopRecording while they swap the encoder.
	isRecording atomic.Bool
	recMu       sync.Mutex
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer
	bitDepth    int
}

// NewEngine resolves the configured devices and prepares all buffers.
// PortAudio must be initialized. pub may be nil.
func NewEngine(cfg *config.Config, tr *tracker.Tracker, pub transport.Transport) (*Engine, error) {
	e := newEngine(cfg, tr, pub)

	in, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	e.inputDevice = in
	e.inputLatency = in.DefaultHighInputLatency
	if cfg.Audio.LowLatency {
		e.inputLatency = in.DefaultLowInputLatency
	}

	if e.outChannels > 0 {
		out, err := OutputDevice(cfg.Audio.OutputDevice)
		if err != nil {
			return nil, err
		}
		e.outputDevice = out
		e.outputLatency = out.DefaultHighOutputLatency
		if cfg.Audio.LowLatency {
			e.outputLatency = out.DefaultLowOutputLatency
		}
	}

	logger.Infof("input %q (%d ch, %s latency), output channels %d, %.0f Hz, %d frames/buffer",
		in.Name, e.inChannels, e.inputLatency, e.outChannels, e.sampleRate, cfg.Audio.FramesPerBuffer)
	e.startPublisher()
	return e, nil
}

// newEngine builds an engine without touching PortAudio.
func newEngine(cfg *config.Config, tr *tracker.Tracker, pub transport.Transport) *Engine {
	e := &Engine{
		config:      cfg,
		tracker:     tr,
		publish:     pub,
		inChannels:  max(cfg.Audio.InputChannels, 1),
		outChannels: cfg.Audio.OutputChannels,
		sampleRate:  cfg.Audio.SampleRate,
		timeStep:    1 / cfg.Audio.SampleRate,
		cvScale:     cfg.Audio.CVScale,
		cvBuf:       make([]float64, cfg.Audio.FramesPerBuffer),
		lightBuf:    make([]float64, cfg.Audio.FramesPerBuffer),
		bitDepth:    cfg.Recording.BitDepth,
		notify:      make(chan struct{}, 1),
		pubQuit:     make(chan struct{}),
		pubDone:     make(chan struct{}),
	}
	e.SetGateThreshold(cfg.Audio.GateThreshold)
	e.gateEnabled.Store(cfg.Audio.GateEnabled)
	return e
}

// StartInputStream opens and starts the stream. With output channels
// configured the stream is duplex and carries the CV.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: e.inChannels,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	var callback any = e.processInputStream
	if e.outChannels > 0 {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   e.outputDevice,
			Channels: e.outChannels,
			Latency:  e.outputLatency,
		}
		callback = e.processDuplexStream
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	e.stream = stream
	logger.Infof("stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.stream == nil {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	logger.Infof("stream stopped after %d buffers", e.buffers.Load())
	return nil
}

func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.processBuffer(in, nil)
}

func (e *Engine) processDuplexStream(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.processBuffer(in, out)
}

// processBuffer runs the tracker over one interleaved buffer. Channel 0 is
// tracked; out, when given, receives the scaled CV on channel 0 and the
// indicator on channel 1.
func (e *Engine) processBuffer(in, out []float32) {
	frames := min(len(in)/e.inChannels, len(e.cvBuf))
	open := e.gateOpen(in, e.inChannels)

	for i := range frames {
		var sample float64
		if open {
			sample = float64(in[i*e.inChannels])
		}
		o := e.tracker.Process(tracker.Input{
			Sample:     sample,
			SampleRate: e.sampleRate,
			TimeStep:   e.timeStep,
		})
		e.cvBuf[i] = o.ControlVoltage
		e.lightBuf[i] = o.Indicator

		if out != nil {
			j := i * e.outChannels
			out[j] = float32(clampUnit(o.ControlVoltage * e.cvScale))
			if e.outChannels > 1 {
				out[j+1] = float32(o.Indicator)
			}
		}
	}

	if e.isRecording.Load() {
		e.record(frames)
	}

	reading := e.tracker.Reading()
	e.mu.Lock()
	e.latest = reading
	e.mu.Unlock()
	e.buffers.Add(1)

	if e.publish != nil {
		select {
		case e.notify <- struct{}{}:
		default: // already pending
		}
	}
}

// startPublisher runs the goroutine that forwards readings to the
// transport. It is a no-op without one.
func (e *Engine) startPublisher() {
	if e.publish == nil || e.pubActive {
		return
	}
	e.pubActive = true
	go e.runPublisher()
}

func (e *Engine) runPublisher() {
	defer close(e.pubDone)
	for {
		select {
		case <-e.pubQuit:
			return
		case <-e.notify:
			if err := e.publish.Send(e.Latest()); err != nil && applog.Enabled(applog.LevelDebug) {
				logger.Debugf("publish: %v", err)
			}
		}
	}
}

// stopPublisher waits for an in-flight Send to return.
func (e *Engine) stopPublisher() {
	e.pubOnce.Do(func() {
		close(e.pubQuit)
		if e.pubActive {
			<-e.pubDone
		}
	})
}

// Latest returns the reading stored after the most recent buffer.
func (e *Engine) Latest() tracker.Reading {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Buffers returns how many buffers the callback has processed.
func (e *Engine) Buffers() uint64 {
	return e.buffers.Load()
}

// Close stops recording, the stream and publication.
func (e *Engine) Close() error {
	defer e.stopPublisher()
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}

var _ transport.ReadingProvider = (*Engine)(nil)

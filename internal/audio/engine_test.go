// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync"
	"testing"
	"time"

	"pitchcv/internal/config"
	"pitchcv/internal/pitch"
	"pitchcv/internal/tracker"
	"pitchcv/internal/transport"
	"pitchcv/pkg/utils"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

type captureTransport struct {
	mu       sync.Mutex
	readings []tracker.Reading
}

func (c *captureTransport) Send(data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings = append(c.readings, data.(tracker.Reading))
	return nil
}

func (c *captureTransport) Close() error { return nil }

func (c *captureTransport) last() (tracker.Reading, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readings) == 0 {
		return tracker.Reading{}, 0
	}
	return c.readings[len(c.readings)-1], len(c.readings)
}

// blockingTransport holds the publisher inside Send until released.
type blockingTransport struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingTransport) Send(any) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return nil
}

func (b *blockingTransport) Close() error { return nil }

func newTestConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.NewConfig()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testFrameSize
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func newTestEngine(t testing.TB, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := newTestConfig(mutate)
	tc, err := cfg.TrackerSettings()
	if err != nil {
		t.Fatalf("TrackerSettings: %v", err)
	}
	tr, err := tracker.New(tc)
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	return newEngine(cfg, tr, nil)
}

// attachPublisher wires pub into e and starts publication; the engine is
// closed when the test ends.
func attachPublisher(t testing.TB, e *Engine, pub transport.Transport) {
	t.Helper()
	e.publish = pub
	e.startPublisher()
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
}

// interleave builds buffers of frames frames with ch channels, putting the
// signal on channel 0 and fill on the rest.
func interleave(signal []float64, ch int, fill float32) []float32 {
	out := make([]float32, len(signal)*ch)
	for i, s := range signal {
		out[i*ch] = float32(s)
		for c := 1; c < ch; c++ {
			out[i*ch+c] = fill
		}
	}
	return out
}

func TestProcessBufferTracksTone(t *testing.T) {
	e := newTestEngine(t, nil)
	pub := &captureTransport{}
	attachPublisher(t, e, pub)

	f := utils.BinAlignedFrequency(40, testSampleRate, tracker.DefaultBufferLength)
	tone := interleave(utils.GenerateSineWave(8*testFrameSize, testSampleRate, f, 0.5), 1, 0)

	for i := 0; i < len(tone); i += testFrameSize {
		e.processBuffer(tone[i:i+testFrameSize], nil)
	}

	r := e.Latest()
	if r.Ticks != 8*testFrameSize {
		t.Errorf("ticks = %d, want %d", r.Ticks, 8*testFrameSize)
	}
	want := math.Log2((f / 2) / pitch.FreqC4)
	if math.Abs(r.ControlVoltage-want) > 1e-9 {
		t.Errorf("cv = %f, want %f", r.ControlVoltage, want)
	}
	if e.Buffers() != 8 {
		t.Errorf("buffers = %d, want 8", e.Buffers())
	}

	// Publication is asynchronous and coalesces, but the newest reading
	// always gets out.
	deadline := time.Now().Add(2 * time.Second)
	for {
		last, n := pub.last()
		if n > 0 && last == r {
			if n > 8 {
				t.Errorf("published %d readings for 8 buffers", n)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("latest reading never published: got %+v (%d sends), want %+v", last, n, r)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProcessBufferTracksChannelZero(t *testing.T) {
	stereo := newTestEngine(t, func(c *config.Config) { c.Audio.InputChannels = 2 })
	mono := newTestEngine(t, nil)

	signal := utils.GenerateComplexWave(4*testFrameSize, testSampleRate, 196, 0.8)
	left := interleave(signal, 2, 0.9)
	only := interleave(signal, 1, 0)

	for i := range 4 {
		stereo.processBuffer(left[i*2*testFrameSize:(i+1)*2*testFrameSize], nil)
		mono.processBuffer(only[i*testFrameSize:(i+1)*testFrameSize], nil)
	}
	if stereo.Latest() != mono.Latest() {
		t.Errorf("stereo %+v != mono %+v", stereo.Latest(), mono.Latest())
	}
}

func TestProcessBufferDuplexOutput(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.Audio.OutputChannels = 2 })
	in := interleave(utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.5), 1, 0)
	out := make([]float32, testFrameSize*2)

	e.processBuffer(in, out)

	for i := range testFrameSize {
		wantCV := float32(clampUnit(e.cvBuf[i] * e.cvScale))
		if out[2*i] != wantCV || out[2*i+1] != float32(e.lightBuf[i]) {
			t.Fatalf("frame %d: out = (%f, %f), want (%f, %f)", i, out[2*i], out[2*i+1], wantCV, e.lightBuf[i])
		}
	}
	// The first analysis happens on frame 100; before that the output is 0 V.
	if out[0] != 0 || out[1] != 1 {
		t.Errorf("first frame = (%f, %f), want (0, 1)", out[0], out[1])
	}
}

func TestGateSilencesQuietInput(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) {
		c.Audio.GateEnabled = true
		c.Audio.GateThreshold = 0.01
	})

	hiss := interleave(utils.GenerateSineWave(testFrameSize, testSampleRate, 3000, 0.005), 1, 0)
	for range 8 {
		e.processBuffer(hiss, nil)
	}
	if cv := e.Latest().ControlVoltage; cv != pitch.MinVoltage {
		t.Errorf("gated CV = %f, want %f", cv, pitch.MinVoltage)
	}

	e.DisableGate()
	for range 8 {
		e.processBuffer(hiss, nil)
	}
	if cv := e.Latest().ControlVoltage; cv == pitch.MinVoltage {
		t.Error("ungated hiss should be tracked")
	}
}

func TestProcessBufferNoAllocs(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.Audio.OutputChannels = 2 })
	in := interleave(utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.5), 1, 0)
	out := make([]float32, testFrameSize*2)

	allocs := testing.AllocsPerRun(50, func() {
		e.processBuffer(in, out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in stream callback, got %.1f", allocs)
	}
}

func TestProcessBufferNoAllocsWithTransport(t *testing.T) {
	e := newTestEngine(t, nil)
	pub := newBlockingTransport()
	attachPublisher(t, e, pub)
	t.Cleanup(func() { close(pub.release) }) // runs before Close

	in := interleave(utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.5), 1, 0)

	// Park the publisher inside Send so only the callback is measured.
	e.processBuffer(in, nil)
	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher never called Send")
	}

	allocs := testing.AllocsPerRun(50, func() {
		e.processBuffer(in, nil)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in stream callback with a transport, got %.1f", allocs)
	}
}

func TestCloseStopsPublisher(t *testing.T) {
	e := newTestEngine(t, nil)
	pub := &captureTransport{}
	e.publish = pub
	e.startPublisher()

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, before := pub.last()
	e.processBuffer(interleave(make([]float64, testFrameSize), 1, 0), nil)
	time.Sleep(10 * time.Millisecond)
	if _, after := pub.last(); after != before {
		t.Errorf("published after Close: %d -> %d", before, after)
	}
}

func BenchmarkProcessBuffer(b *testing.B) {
	e := newTestEngine(b, nil)
	in := interleave(utils.GenerateSineWave(testFrameSize, testSampleRate, 440, 0.5), 1, 0)

	b.ReportAllocs()
	for b.Loop() {
		e.processBuffer(in, nil)
	}
}

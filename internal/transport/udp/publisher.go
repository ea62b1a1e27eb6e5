// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"pitchcv/internal/tracker"
	"pitchcv/internal/transport"
)

/*
Packet layout (BigEndian, 25 bytes):

	+--------+-----------+---------+---------+-----------+---------+-----------+
	| offset | 0         | 4       | 12      | 16        | 20      | 24        |
	| field  | sequence  | time    | cv      | frequency | peak    | indicator |
	| type   | uint32    | int64   | float32 | float32   | uint32  | uint8     |
	+--------+-----------+---------+---------+-----------+---------+-----------+

time is nanoseconds since the Unix epoch at send time, cv is volts
(1 V/octave), frequency is Hz, peak is the spectrum slot and indicator is 0
or 1.
*/
const PacketSize = 25

var ErrShortPacket = errors.New("udp packet too short")

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence       uint32
	Timestamp      int64
	ControlVoltage float32
	Frequency      float32
	Peak           uint32
	Indicator      uint8
}

// Encode writes p into dst, which must hold PacketSize bytes.
func (p Packet) Encode(dst []byte) {
	_ = dst[PacketSize-1]
	binary.BigEndian.PutUint32(dst[0:], p.Sequence)
	binary.BigEndian.PutUint64(dst[4:], uint64(p.Timestamp))
	binary.BigEndian.PutUint32(dst[12:], math.Float32bits(p.ControlVoltage))
	binary.BigEndian.PutUint32(dst[16:], math.Float32bits(p.Frequency))
	binary.BigEndian.PutUint32(dst[20:], p.Peak)
	dst[24] = p.Indicator
}

// DecodePacket is the receiver side of Encode.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < PacketSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	return Packet{
		Sequence:       binary.BigEndian.Uint32(b[0:]),
		Timestamp:      int64(binary.BigEndian.Uint64(b[4:])),
		ControlVoltage: math.Float32frombits(binary.BigEndian.Uint32(b[12:])),
		Frequency:      math.Float32frombits(binary.BigEndian.Uint32(b[16:])),
		Peak:           binary.BigEndian.Uint32(b[20:]),
		Indicator:      b[24],
	}, nil
}

// PacketFromReading converts a tracker reading.
func PacketFromReading(seq uint32, now time.Time, r tracker.Reading) Packet {
	var light uint8
	if r.Indicator > 0 {
		light = 1
	}
	return Packet{
		Sequence:       seq,
		Timestamp:      now.UnixNano(),
		ControlVoltage: float32(r.ControlVoltage),
		Frequency:      float32(r.Frequency),
		Peak:           uint32(max(r.Peak, 0)),
		Indicator:      light,
	}
}

// Publisher polls a ReadingProvider on a ticker and sends each reading as a
// Packet. It runs in its own goroutine between Start and Stop.
type Publisher struct {
	sender   *Sender
	provider transport.ReadingProvider
	interval time.Duration

	mu       sync.Mutex // guards ticker and done across Start/Stop
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	sequence uint32
	packet   [PacketSize]byte
}

// DefaultInterval is used when NewPublisher is given a non-positive one.
const DefaultInterval = 16 * time.Millisecond

// NewPublisher requires a sender and a provider.
func NewPublisher(interval time.Duration, sender *Sender, provider transport.ReadingProvider) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if provider == nil {
		return nil, errors.New("udp publisher: reading provider cannot be nil")
	}
	if interval <= 0 {
		logger.Warnf("invalid publish interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}

	logger.Infof("publisher initialized (Interval: %s, Target: %s)", interval, sender.Target())
	return &Publisher{sender: sender, provider: provider, interval: interval}, nil
}

// Start launches the publishing goroutine. Calling it while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker, done := p.ticker, p.done
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.done)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("publisher stopped after %d packets", p.sequence)
	return nil
}

// publish sends one packet. It only runs on the publisher goroutine, so the
// packet buffer is reused without locking.
func (p *Publisher) publish() {
	p.sequence++
	PacketFromReading(p.sequence, time.Now(), p.provider.Latest()).Encode(p.packet[:])

	if err := p.sender.Send(p.packet[:]); err != nil {
		logger.Warnf("packet %d: %v", p.sequence, err)
	}
}

// Close stops publishing and closes the sender.
func (p *Publisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

var _ interface{ Close() error } = (*Publisher)(nil)

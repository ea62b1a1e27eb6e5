// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"pitchcv/internal/tracker"
)

type fixedProvider struct {
	reading tracker.Reading
	calls   atomic.Int64
}

func (f *fixedProvider) Latest() tracker.Reading {
	f.calls.Add(1)
	return f.reading
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("no loopback UDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPacketEncodeDecode(t *testing.T) {
	now := time.Unix(1700000000, 123)
	r := tracker.Reading{ControlVoltage: -1.5, Frequency: 130.8128, Peak: 12, Indicator: 1}

	var buf [PacketSize]byte
	PacketFromReading(7, now, r).Encode(buf[:])

	got, err := DecodePacket(buf[:])
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	want := Packet{
		Sequence:       7,
		Timestamp:      now.UnixNano(),
		ControlVoltage: -1.5,
		Frequency:      float32(130.8128),
		Peak:           12,
		Indicator:      1,
	}
	if got != want {
		t.Errorf("decoded %+v, want %+v", got, want)
	}
}

func TestDecodePacketShort(t *testing.T) {
	if _, err := DecodePacket(make([]byte, PacketSize-1)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("error = %v, want ErrShortPacket", err)
	}
}

func TestPublisherSendsReadings(t *testing.T) {
	rx := listen(t)

	sender, err := NewSender(rx.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	provider := &fixedProvider{reading: tracker.Reading{ControlVoltage: 0.25, Frequency: 311.13, Peak: 29}}
	pub, err := NewPublisher(5*time.Millisecond, sender, provider)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	pub.Start()
	pub.Start() // no-op while running
	defer pub.Close()

	buf := make([]byte, 64)
	var last uint32
	for i := range 3 {
		rx.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := rx.Read(buf)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if n != PacketSize {
			t.Fatalf("packet %d: %d bytes, want %d", i, n, PacketSize)
		}
		p, _ := DecodePacket(buf[:n])
		if p.Sequence <= last {
			t.Errorf("sequence %d not increasing after %d", p.Sequence, last)
		}
		last = p.Sequence
		if p.ControlVoltage != 0.25 || p.Peak != 29 || p.Indicator != 0 {
			t.Errorf("packet %d = %+v", i, p)
		}
	}

	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	calls := provider.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if provider.calls.Load() != calls {
		t.Error("provider polled after Stop")
	}
}

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher(time.Millisecond, nil, &fixedProvider{}); err == nil {
		t.Error("nil sender should fail")
	}

	rx := listen(t)
	sender, err := NewSender(rx.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	defer sender.Close()

	if _, err := NewPublisher(time.Millisecond, sender, nil); err == nil {
		t.Error("nil provider should fail")
	}
	pub, err := NewPublisher(0, sender, &fixedProvider{})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if pub.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", pub.interval, DefaultInterval)
	}
}

func TestSenderClosed(t *testing.T) {
	rx := listen(t)
	sender, err := NewSender(rx.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("expected resolve error")
	}
}

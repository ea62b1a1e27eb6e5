// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "pitchcv/internal/log"
)

var ErrClosed = errors.New("udp sender is closed")

var logger = applog.Named("udp")

// Sender writes datagrams to a single target address.
type Sender struct {
	mu     sync.Mutex // guards conn against a concurrent Close
	conn   *net.UDPConn
	target string
	closed bool
}

// NewSender dials targetAddress ("host:port"). UDP dialing only binds a
// local socket; nothing is sent until Send.
func NewSender(targetAddress string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP target %q: %w", targetAddress, err)
	}

	logger.Infof("sending to %s", conn.RemoteAddr())
	return &Sender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// Send writes one datagram.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet to %s: %w", s.target, err)
	}
	return nil
}

// Target returns the resolved remote address.
func (s *Sender) Target() string { return s.target }

// Close is idempotent.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	logger.Debugf("closing connection to %s", s.target)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

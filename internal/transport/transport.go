// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	"pitchcv/internal/tracker"
)

// Transport defines a generic interface for publishing readings or events.
// Implementations must be safe for concurrent use and Send must not block,
// since the audio engine calls it once per buffer.
type Transport interface {
	Send(data any) error
	Close() error
}

// ReadingProvider is implemented by anything holding the latest tracker
// reading, normally the audio engine. Pull-based consumers (the UDP
// publisher, the TUI) poll it at their own rate.
type ReadingProvider interface {
	Latest() tracker.Reading
}

// Multi fans a message out to every transport it holds.
type Multi []Transport

// Send forwards data to each transport and joins their errors.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport, even when some fail.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)

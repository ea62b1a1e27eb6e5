// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "pitchcv/internal/log"
	"pitchcv/internal/tracker"
)

// LoggingTransport writes every Nth message to the debug log. It is the
// fallback transport when nothing else is enabled, useful with --verbose.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
	log   *applog.Logger
}

// NewLoggingTransport logs one message out of every `every` (values below 1
// log everything).
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	lt := &LoggingTransport{every: uint64(every), log: applog.Named("transport")}
	lt.log.Infof("using logging transport (every %d messages)", every)
	return lt
}

// Send never fails. Formatting happens only when debug output is enabled.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if n%lt.every != 0 || !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	if r, ok := data.(tracker.Reading); ok {
		lt.log.Debugf("cv=%.3f V freq=%.2f Hz peak=%d light=%.0f analyses=%d", r.ControlVoltage, r.Frequency, r.Peak, r.Indicator, r.Analyses)
		return nil
	}
	lt.log.Debugf("received (%T): %+v", data, data)
	return nil
}

// Count returns how many messages were sent, logged or not.
func (lt *LoggingTransport) Count() uint64 {
	return lt.count.Load()
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("closed after %d messages", lt.count.Load())
	return nil
}

var _ Transport = (*LoggingTransport)(nil)

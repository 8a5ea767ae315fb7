// SPDX-License-Identifier: MIT
package transport

import (
	"tempo/internal/beat"
	applog "tempo/internal/log"
)

// LoggingTransport implements the Transport interface by logging readings
// that carry beats.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the reading at debug level. Readings without beats are skipped
// to keep the log readable at the poll rate.
func (lt *LoggingTransport) Send(r beat.Reading) error {
	if r.Beats == 0 {
		return nil
	}
	applog.Debugf("Beat x%d: %.1f bpm, rms %.4f", r.Beats, r.BPM, r.Loudness)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
